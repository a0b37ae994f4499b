package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/auth"
	"unifield-backend/internal/config"
	"unifield-backend/internal/metrics"
	"unifield-backend/internal/models"
)

type fakeUsers map[int]*models.User

func (f fakeUsers) Get(_ context.Context, id int) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("no rows")
}

func setup(t *testing.T) (*AuthMiddleware, *auth.JWTManager, fakeUsers) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "middleware-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "unifield-test"
	jwtm := auth.NewJWTManager(cfg)

	retailer := int64(3)
	users := fakeUsers{
		1: {ID: 1, Email: "admin@unifield.ng", Role: models.RoleAdmin},
		2: {ID: 2, Email: "owner@pharmaplus.ng", Role: models.RoleRetailer, RetailerID: &retailer},
	}
	return NewAuthMiddleware(jwtm, users), jwtm, users
}

func token(t *testing.T, jwtm *auth.JWTManager, u *models.User) string {
	t.Helper()
	tok, err := jwtm.GenerateToken(u)
	require.NoError(t, err)
	return tok
}

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentUser(r.Context())
	role, _ := GetRoleFromContext(r.Context())
	retailer, ok := GetRetailerIDFromContext(r.Context())
	fmt.Fprintf(w, "%s|%s|%v|%d", id, role, ok, retailer)
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticate(t *testing.T) {
	m, jwtm, users := setup(t)
	h := m.Authenticate(http.HandlerFunc(echoIdentity))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tables/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, jwtm, users[2]))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2|retailer|true|3", rec.Body.String())
	})

	t.Run("access_token query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/realtime?access_token="+token(t, jwtm, users[1]), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1|admin|false|0", rec.Body.String())
	})

	cases := map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"garbage":   "Bearer not-a-jwt",
		"unknown":   "Bearer " + token(t, jwtm, &models.User{ID: 99, Role: models.RoleAdmin}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tables/orders", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "auth", decodeErr(t, rec)["type"])
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	m, jwtm, users := setup(t)
	h := m.RequireAdmin(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodGet, "/api/backup", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, jwtm, users[2]))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer "+token(t, jwtm, users[1]))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentUserWithoutIdentity(t *testing.T) {
	_, ok := CurrentUser(context.Background())
	assert.False(t, ok)
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeErr(t, rec)["type"])
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/api/tables/{table}/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/api/tables/{table}/{id}", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/tables/orders/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestAPILoggingRecordsUser(t *testing.T) {
	authm, jwtm, users := setup(t)

	var mu sync.Mutex
	var lines []string
	m := &APILoggingMiddleware{
		logChan: make(chan requestLog, 10),
		done:    make(chan struct{}),
		logf: func(format string, args ...interface{}) {
			mu.Lock()
			lines = append(lines, fmt.Sprintf(format, args...))
			mu.Unlock()
		},
	}
	go m.asyncLogWriter()

	h := m.Handler(authm.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/tables/orders?eq.status=pending", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, jwtm, users[1]))
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	m.Close()

	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[API] GET /api/tables/orders 200 "), lines[0])
	assert.Contains(t, lines[0], " 2B user:1 ")
}
