package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/models"
	"unifield-backend/internal/services"
	"unifield-backend/pkg/utils"
)

// LoginLogStore keeps the sign in history. *repositories.LoginLogRepository
// implements it.
type LoginLogStore interface {
	Record(ctx context.Context, userID int, ipAddress, userAgent string) (int64, error)
	CloseLatest(ctx context.Context, userID int) error
	List(ctx context.Context, limit int) ([]models.LoginLog, error)
}

type AuthHandler struct {
	Service *services.UserService
	// Logins is optional; without it sign ins are not recorded.
	Logins LoginLogStore
}

func NewAuthHandler(s *services.UserService, logins LoginLogStore) *AuthHandler {
	return &AuthHandler{Service: s, Logins: logins}
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "Invalid request body")
		return
	}

	authResp, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			log.Printf("[Auth] login for %s failed: %v", req.Email, err)
		}
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, err.Error())
		return
	}

	if h.Logins != nil {
		if _, err := h.Logins.Record(r.Context(), authResp.User.ID, middleware.ClientIP(r), r.UserAgent()); err != nil {
			log.Printf("[Auth] failed to record login for %s: %v", authResp.User.Email, err)
		}
	}
	log.Printf("[Auth] %s signed in", authResp.User.Email)
	utils.JSON(w, http.StatusOK, authResp)
}

// Logout closes the caller's latest session in the sign in history. Tokens
// stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, "Not authenticated")
		return
	}
	if h.Logins != nil {
		if err := h.Logins.CloseLatest(r.Context(), id); err != nil {
			log.Printf("[Auth] failed to record logout for user %d: %v", id, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, "Not authenticated")
		return
	}
	user, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, "User not found")
		return
	}
	utils.JSON(w, http.StatusOK, user)
}

// LoginLogs handles GET /api/admin/login-logs?limit=N
func (h *AuthHandler) LoginLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			utils.Error(w, http.StatusBadRequest, gateway.ErrorTypeValidation, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	if h.Logins == nil {
		utils.JSON(w, http.StatusOK, []models.LoginLog{})
		return
	}

	logs, err := h.Logins.List(r.Context(), limit)
	if err != nil {
		log.Printf("[Auth] failed to list login logs: %v", err)
		utils.Error(w, http.StatusInternalServerError, gateway.ErrorTypeInternal, "Failed to list login logs")
		return
	}
	if logs == nil {
		logs = []models.LoginLog{}
	}
	utils.JSON(w, http.StatusOK, logs)
}
