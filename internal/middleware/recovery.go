package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"unifield-backend/internal/gateway"
	"unifield-backend/pkg/utils"
)

// PanicRecovery turns a handler panic into a 500 with the usual error body.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[Recovery] panic on %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
