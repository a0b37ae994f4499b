package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"unifield-backend/internal/auth"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
	"unifield-backend/pkg/utils"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const EmailKey contextKey = "email"
const RoleKey contextKey = "role"
const RetailerIDKey contextKey = "retailer_id"

// UserLookup loads the current state of a token's user.
type UserLookup interface {
	Get(ctx context.Context, id int) (*models.User, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserLookup
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// bearerToken reads "Authorization: Bearer <token>", or the access_token
// query parameter browsers use for websocket upgrades.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("access_token"); t != "" {
			return t, ""
		}
		return "", "Authorization header required"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format"
	}
	return parts[1], ""
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*models.User, string) {
	token, msg := bearerToken(r)
	if msg != "" {
		return nil, msg
	}
	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, "Invalid or expired token"
	}

	// Database values win over the token so role changes apply immediately
	user, err := m.users.Get(r.Context(), claims.UserID)
	if err != nil {
		return nil, "User not found"
	}
	return user, ""
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, msg := m.authenticate(r)
		if user == nil {
			utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRole is a middleware that ensures the user has one of the allowed roles
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, msg := m.authenticate(r)
			if user == nil {
				utils.Error(w, http.StatusUnauthorized, gateway.ErrorTypeAuth, msg)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if user.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				utils.Error(w, http.StatusForbidden, gateway.ErrorTypeAuth, "Forbidden: Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin is a middleware that ensures the user has admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleAdmin)(next)
}

// WithUser stores the user's identity in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if sink, ok := ctx.Value(userSinkKey).(*int); ok {
		*sink = user.ID
	}
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	ctx = context.WithValue(ctx, EmailKey, user.Email)
	ctx = context.WithValue(ctx, RoleKey, user.Role)
	if user.RetailerID != nil {
		ctx = context.WithValue(ctx, RetailerIDKey, *user.RetailerID)
	}
	return ctx
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetRetailerIDFromContext is set only for users linked to a retailer.
func GetRetailerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(RetailerIDKey).(int64)
	return id, ok
}

// CurrentUser is the gateway.UserFunc for server-side writes.
func CurrentUser(ctx context.Context) (string, bool) {
	id, ok := GetUserIDFromContext(ctx)
	if !ok {
		return "", false
	}
	return strconv.Itoa(id), true
}
