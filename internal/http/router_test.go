package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/auth"
	"unifield-backend/internal/config"
	"unifield-backend/internal/crud"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/handlers"
	"unifield-backend/internal/health"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/models"
	"unifield-backend/internal/reports"
	"unifield-backend/internal/services"
)

type userStore struct {
	mu    sync.Mutex
	users map[int]*models.User
}

func (s *userStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = len(s.users) + 1
	s.users[u.ID] = u
	return nil
}

func (s *userStore) Get(_ context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *userStore) CountAdmins(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type loginLogs struct {
	mu   sync.Mutex
	logs []models.LoginLog
}

func (l *loginLogs) Record(_ context.Context, userID int, ip, ua string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := int64(len(l.logs) + 1)
	l.logs = append(l.logs, models.LoginLog{ID: id, UserID: userID, LoginTime: time.Now(), IPAddress: ip, UserAgent: ua})
	return id, nil
}

func (l *loginLogs) CloseLatest(_ context.Context, userID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.logs) - 1; i >= 0; i-- {
		if l.logs[i].UserID == userID && l.logs[i].LogoutTime == nil {
			now := time.Now()
			l.logs[i].LogoutTime = &now
			return nil
		}
	}
	return nil
}

func (l *loginLogs) List(_ context.Context, limit int) ([]models.LoginLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.LoginLog
	for i := len(l.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.logs[i])
	}
	return out, nil
}

type actionLogs struct {
	mu   sync.Mutex
	logs []models.ActionLog
}

func (a *actionLogs) Create(_ context.Context, entry *models.ActionLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry.ID = int64(len(a.logs) + 1)
	entry.CreatedAt = time.Now()
	a.logs = append(a.logs, *entry)
	return nil
}

func (a *actionLogs) List(_ context.Context, table string, limit int) ([]models.ActionLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.ActionLog
	for i := len(a.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if table == "" || a.logs[i].TableName == table {
			out = append(out, a.logs[i])
		}
	}
	return out, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

const password = "s3cret-pass"

type testServer struct {
	*httptest.Server
	mem    *gateway.Memory
	logins *loginLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "router-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "unifield-test"
	jwtm := auth.NewJWTManager(cfg)

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	pharmaPlus := int64(3)
	users := &userStore{users: map[int]*models.User{
		1: {ID: 1, Email: "admin@unifield.ng", PasswordHash: hash, Role: models.RoleAdmin},
		2: {ID: 2, Email: "owner@pharmaplus.ng", PasswordHash: hash, Role: models.RoleRetailer, RetailerID: &pharmaPlus},
	}}

	mem := gateway.NewMemory(config.DefaultTables...)
	mem.Versioned(models.EntityInvoices, models.EntityPromotions)
	mem.Seed(models.EntityRetailers,
		models.Row{"name": "SuperMart Plus", "location": "Lagos, Nigeria"},
		models.Row{"name": "QuickStop Convenience", "location": "Abuja, Nigeria"},
		models.Row{"name": "Pharma Plus", "location": "Port Harcourt, Nigeria"},
	)

	logins := &loginLogs{}
	router := NewRouter(
		handlers.NewAuthHandler(services.NewUserService(users, jwtm), logins),
		handlers.NewTableHandler(mem, &actionLogs{}),
		handlers.NewRealtimeHandler(mem),
		handlers.NewRetailerPortalHandler(mem),
		handlers.NewInvoiceHandler(reports.NewInvoiceService(mem, "UniField", "NGN")),
		handlers.NewBackupHandler(nil),
		handlers.NewHealthHandler(health.NewHealthChecker(okPinger{}, nil, mem.Subscribers)),
		middleware.NewAuthMiddleware(jwtm, users),
		nil,
	)
	srv := httptest.NewServer(middleware.PanicRecovery(router))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mem: mem, logins: logins}
}

func (s *testServer) login(t *testing.T, email string) *gateway.Client {
	t.Helper()
	c := gateway.NewClient(s.URL, "")
	_, err := c.Login(context.Background(), email, password)
	require.NoError(t, err)
	return c
}

func (s *testServer) get(t *testing.T, c *gateway.Client, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	if c != nil {
		req.Header.Set("Authorization", "Bearer "+c.Token())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	c := gateway.NewClient(s.URL, "")
	_, err := c.Login(ctx, "admin@unifield.ng", "wrong")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	_, err = c.Select(ctx, models.EntityRetailers, gateway.Query{})
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	resp, err := c.Login(ctx, "ADMIN@unifield.ng", password)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	id, ok := c.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestTableRoundTrip(t *testing.T) {
	s := newTestServer(t)
	c := s.login(t, "admin@unifield.ng")
	ctx := context.Background()

	res, err := c.Select(ctx, models.EntityRetailers, gateway.Query{
		OrderBy: &gateway.Order{Column: "name", Ascending: true},
		Range:   &gateway.Range{From: 0, To: 1},
		Count:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Pharma Plus", res.Rows[0].String("name"))

	row, err := c.Insert(ctx, models.EntityProducts, models.Row{"name": "Paracetamol", "sku": "PRC-500", "price": 1500})
	require.NoError(t, err)
	id, ok := row.ID()
	require.True(t, ok)

	row, err = c.Update(ctx, models.EntityProducts, models.Row{"price": 1750}, id)
	require.NoError(t, err)
	assert.Equal(t, "1750", row.String("price"))
	assert.Equal(t, "PRC-500", row.String("sku"))

	res, err = c.Select(ctx, models.EntityProducts, gateway.Query{}.Eq("sku", "PRC-500"))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, -1, res.Count)

	require.NoError(t, c.Delete(ctx, models.EntityProducts, id))
	assert.ErrorIs(t, c.Delete(ctx, models.EntityProducts, id), gateway.ErrNotFound)
	_, err = c.Update(ctx, models.EntityProducts, models.Row{"price": 1}, id)
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	_, err = c.Select(ctx, "payroll", gateway.Query{})
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	_, err = c.Insert(ctx, models.EntityProducts, models.Row{})
	var se *gateway.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
}

func TestVersionedInvoiceConflict(t *testing.T) {
	s := newTestServer(t)
	c := s.login(t, "admin@unifield.ng")
	ctx := context.Background()

	row, err := c.Insert(ctx, models.EntityInvoices, models.Row{"retailer": "Pharma Plus", "status": "Pending", "amount": 40000})
	require.NoError(t, err)
	id, _ := row.ID()
	assert.Equal(t, "1", row.String("version"))

	row, err = c.Update(ctx, models.EntityInvoices, models.Row{"status": "Paid", "version": 1}, id)
	require.NoError(t, err)
	assert.Equal(t, "2", row.String("version"))

	_, err = c.Update(ctx, models.EntityInvoices, models.Row{"status": "Overdue", "version": 1}, id)
	assert.ErrorIs(t, err, gateway.ErrConflict)
}

func TestPageOverClient(t *testing.T) {
	s := newTestServer(t)
	c := s.login(t, "admin@unifield.ng")
	ctx := context.Background()

	reg := models.DefaultRegistry()
	entity, err := reg.Get(models.EntityRetailers)
	require.NoError(t, err)

	page := crud.NewPage(c, entity)
	require.NoError(t, page.Open(ctx))
	defer page.Close()
	assert.Equal(t, crud.Ready, page.Status())
	assert.Equal(t, 3, page.Store().Len())

	page.SetQuery("lagos")
	require.Len(t, page.Filtered(), 1)
	assert.Equal(t, "SuperMart Plus", page.Filtered()[0].String("name"))

	page.Session().OpenCreate()
	row, err := page.Submit(ctx, models.Row{"name": "Ikeja Mart", "location": "Lagos, Nigeria"})
	require.NoError(t, err)
	assert.Equal(t, "1", row.String(models.CreatedByField))
	assert.Equal(t, 4, page.Store().Len())
	assert.Len(t, page.Filtered(), 2)
}

func TestRealtimeOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	c := s.login(t, "admin@unifield.ng")
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, models.EntityOrders, gateway.EventInsert)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return s.mem.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.Insert(ctx, models.EntityOrders, models.Row{"customer_name": "Ada", "status": "pending"})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, models.EntityOrders, ev.Table)
		assert.Equal(t, gateway.EventInsert, ev.Kind)
		assert.Equal(t, int64(1), ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event")
	}

	require.NoError(t, sub.Close())
	assert.Eventually(t, func() bool { return s.mem.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Subscribe(ctx, "payroll")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestRetailerProfile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	owner := s.login(t, "owner@pharmaplus.ng")
	resp := s.get(t, owner, "/api/retailer/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admin := s.login(t, "admin@unifield.ng")
	resp = s.get(t, admin, "/api/retailer/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err := admin.Update(ctx, models.EntityRetailers, models.Row{"user_id": 1}, 2)
	require.NoError(t, err)
	resp = s.get(t, admin, "/api/retailer/profile")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvoicePDF(t *testing.T) {
	s := newTestServer(t)
	c := s.login(t, "admin@unifield.ng")

	row, err := c.Insert(context.Background(), models.EntityInvoices, models.Row{"retailer": "Pharma Plus", "status": "Pending", "amount": 40000})
	require.NoError(t, err)
	id, _ := row.ID()

	resp := s.get(t, c, "/api/invoices/"+strconv.FormatInt(id, 10)+"/pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = s.get(t, c, "/api/invoices/999/pdf")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.get(t, nil, "/api/invoices/1/pdf")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	owner := s.login(t, "owner@pharmaplus.ng")
	resp := s.get(t, owner, "/api/admin/backup")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := s.login(t, "admin@unifield.ng")
	resp = s.get(t, admin, "/api/admin/backup")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/api/admin/backup", nil)
	req.Header.Set("Authorization", "Bearer "+admin.Token())
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, r.StatusCode)
}

func TestRetailerRoleCannotUseAdminTables(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	owner := s.login(t, "owner@pharmaplus.ng")

	forbidden := func(err error) {
		t.Helper()
		var se *gateway.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusForbidden, se.Status)
	}

	_, err := owner.Select(ctx, models.EntityRetailers, gateway.Query{})
	forbidden(err)
	_, err = owner.Insert(ctx, models.EntityProducts, models.Row{"name": "Counterfeit", "sku": "FAKE-1"})
	forbidden(err)
	_, err = owner.Update(ctx, models.EntityRetailers, models.Row{"credit_limit": 1}, 1)
	forbidden(err)
	forbidden(owner.Delete(ctx, models.EntityRetailers, 1))

	for _, path := range []string{"/api/realtime?table=orders", "/api/invoices/1/pdf"} {
		resp := s.get(t, owner, path)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	res, err := s.mem.Select(ctx, models.EntityRetailers, gateway.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	res, err = s.mem.Select(ctx, models.EntityProducts, gateway.Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	resp := s.get(t, owner, "/api/retailer/profile")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTablesRejectNullBody(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@unifield.ng")

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/api/tables/invoices"},
		{http.MethodPatch, "/api/tables/retailers/1"},
	} {
		r, err := http.NewRequest(req.method, s.URL+req.path, strings.NewReader("null"))
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+admin.Token())
		r.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, req.path)
	}

	res, err := s.mem.Select(context.Background(), models.EntityInvoices, gateway.Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestLoginHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	owner := s.login(t, "owner@pharmaplus.ng")
	admin := s.login(t, "admin@unifield.ng")
	require.NoError(t, owner.Logout(ctx))

	var logs []models.LoginLog
	require.NoError(t, admin.Call(ctx, http.MethodGet, "/api/admin/login-logs?limit=10", nil, &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, 1, logs[0].UserID)
	assert.Nil(t, logs[0].LogoutTime)
	assert.Equal(t, 2, logs[1].UserID)
	assert.NotNil(t, logs[1].LogoutTime)
	assert.Equal(t, "127.0.0.1", logs[1].IPAddress)

	err := owner.Call(ctx, http.MethodGet, "/api/admin/login-logs", nil, &logs)
	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)

	err = admin.Call(ctx, http.MethodGet, "/api/admin/login-logs?limit=0", nil, &logs)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
}

func TestActionLogs(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	admin := s.login(t, "admin@unifield.ng")

	row, err := admin.Insert(ctx, models.EntityProducts, models.Row{"name": "Paracetamol", "sku": "PCM-500"})
	require.NoError(t, err)
	id, _ := row.ID()
	_, err = admin.Update(ctx, models.EntityProducts, models.Row{"stock": 40}, id)
	require.NoError(t, err)
	require.NoError(t, admin.Delete(ctx, models.EntityRetailers, 2))
	_, err = admin.Update(ctx, models.EntityProducts, models.Row{"stock": 1}, 999)
	require.ErrorIs(t, err, gateway.ErrNotFound)

	var logs []models.ActionLog
	require.NoError(t, admin.Call(ctx, http.MethodGet, "/api/admin/action-logs", nil, &logs))
	require.Len(t, logs, 3)
	assert.Equal(t, models.ActionDelete, logs[0].Action)
	assert.Equal(t, models.EntityRetailers, logs[0].TableName)
	assert.Equal(t, int64(2), logs[0].RowID)

	require.NoError(t, admin.Call(ctx, http.MethodGet, "/api/admin/action-logs?table=products", nil, &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionUpdate, logs[0].Action)
	assert.Equal(t, "40", logs[0].Changes.String("stock"))
	assert.Equal(t, models.ActionCreate, logs[1].Action)
	assert.Equal(t, id, logs[1].RowID)
	assert.Equal(t, 1, logs[1].UserID)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		resp := s.get(t, nil, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	resp := s.get(t, nil, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
