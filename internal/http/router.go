package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unifield-backend/internal/handlers"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/models"
)

func NewRouter(
	authHandler *handlers.AuthHandler,
	tableHandler *handlers.TableHandler,
	realtimeHandler *handlers.RealtimeHandler,
	retailerPortalHandler *handlers.RetailerPortalHandler,
	invoiceHandler *handlers.InvoiceHandler,
	backupHandler *handlers.BackupHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	apiLogging *middleware.APILoggingMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	// Inside the router so metrics see the matched route template
	r.Use(middleware.MetricsMiddleware)
	if apiLogging != nil {
		r.Use(apiLogging.Handler)
	}

	// Health and metrics (no auth)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Public API routes - Authentication
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	authAPI := r.PathPrefix("/api/auth").Subrouter()
	authAPI.Use(authMiddleware.Authenticate)
	authAPI.HandleFunc("/me", authHandler.Me).Methods("GET")
	authAPI.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	// Entity tables back the admin screens. Retailers only see their own
	// row through /api/retailer/profile.
	tablesAPI := r.PathPrefix("/api/tables").Subrouter()
	tablesAPI.Use(authMiddleware.RequireAdmin)
	tablesAPI.HandleFunc("/{table}", tableHandler.List).Methods("GET")
	tablesAPI.HandleFunc("/{table}", tableHandler.Create).Methods("POST")
	tablesAPI.HandleFunc("/{table}/{id}", tableHandler.Update).Methods("PATCH")
	tablesAPI.HandleFunc("/{table}/{id}", tableHandler.Delete).Methods("DELETE")

	// Change feed (websocket)
	realtimeAPI := r.PathPrefix("/api/realtime").Subrouter()
	realtimeAPI.Use(authMiddleware.RequireAdmin)
	realtimeAPI.HandleFunc("", realtimeHandler.Stream).Methods("GET")

	// Retailer interface
	retailerAPI := r.PathPrefix("/api/retailer").Subrouter()
	retailerAPI.Use(authMiddleware.RequireRole(models.RoleRetailer, models.RoleAdmin))
	retailerAPI.HandleFunc("/profile", retailerPortalHandler.Profile).Methods("GET")

	// Financial documents
	invoicesAPI := r.PathPrefix("/api/invoices").Subrouter()
	invoicesAPI.Use(authMiddleware.RequireAdmin)
	invoicesAPI.HandleFunc("/{id}/pdf", invoiceHandler.DownloadPDF).Methods("GET")

	// Admin-only API routes
	adminAPI := r.PathPrefix("/api/admin").Subrouter()
	adminAPI.Use(authMiddleware.RequireAdmin)
	adminAPI.HandleFunc("/backup", backupHandler.Create).Methods("POST")
	adminAPI.HandleFunc("/backup", backupHandler.List).Methods("GET")
	adminAPI.HandleFunc("/login-logs", authHandler.LoginLogs).Methods("GET")
	adminAPI.HandleFunc("/action-logs", tableHandler.ActionLogs).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(notFound)
	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not found","type":"not_found"}`))
}
