package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// requestLog is one line of the API access log.
type requestLog struct {
	Method     string
	Path       string
	Route      string
	StatusCode int
	Duration   time.Duration
	Bytes      int
	UserID     int
	IPAddress  string
}

// APILoggingMiddleware writes an access log line per API request from a
// background goroutine so slow log sinks never hold up handlers.
type APILoggingMiddleware struct {
	logChan chan requestLog
	done    chan struct{}
	logf    func(format string, args ...interface{})
}

// NewAPILoggingMiddleware creates a new API logging middleware
func NewAPILoggingMiddleware() *APILoggingMiddleware {
	m := &APILoggingMiddleware{
		logChan: make(chan requestLog, 1000),
		done:    make(chan struct{}),
		logf:    log.Printf,
	}
	go m.asyncLogWriter()
	return m
}

func (m *APILoggingMiddleware) asyncLogWriter() {
	defer close(m.done)
	for e := range m.logChan {
		user := "-"
		if e.UserID != 0 {
			user = "user:" + strconv.Itoa(e.UserID)
		}
		m.logf("[API] %s %s %d %s %dB %s %s",
			e.Method, e.Path, e.StatusCode, e.Duration.Round(time.Microsecond), e.Bytes, user, e.IPAddress)
	}
}

// Handler returns the middleware handler. It must sit inside the router so
// the authenticated user is visible.
func (m *APILoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		// Handlers below store the user on a derived request; capture it
		var userID int
		next.ServeHTTP(wrapped, r.WithContext(withUserSink(r.Context(), &userID)))

		entry := requestLog{
			Method:     r.Method,
			Path:       sanitizePath(r.URL.Path),
			Route:      routeTemplate(r),
			StatusCode: wrapped.statusCode,
			Duration:   time.Since(start),
			Bytes:      wrapped.bytesWritten,
			UserID:     userID,
			IPAddress:  ClientIP(r),
		}

		select {
		case m.logChan <- entry:
		default:
			log.Printf("[APILogging] Log buffer full, dropping log entry for %s", r.URL.Path)
		}
	})
}

const userSinkKey contextKey = "user_sink"

func withUserSink(ctx context.Context, id *int) context.Context {
	return context.WithValue(ctx, userSinkKey, id)
}

// shouldSkipLogging returns true for paths that shouldn't be logged
func shouldSkipLogging(path string) bool {
	skipPaths := []string{
		"/health",
		"/metrics",
		"/favicon.ico",
	}

	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}

	return false
}

// sanitizePath removes sensitive data from paths
func sanitizePath(path string) string {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 500 {
		path = path[:500]
	}
	return path
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Close closes the middleware and flushes pending logs
func (m *APILoggingMiddleware) Close() {
	close(m.logChan)
	<-m.done
}
