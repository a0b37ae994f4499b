package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"unifield-backend/internal/models"
)

// Client talks to the gateway service over HTTP and its websocket change
// feed. It is what the dashboard uses.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer

	mu    sync.RWMutex
	token string
	user  *models.User
}

// NewClient creates a client for the service at baseURL. token may be empty
// and set later by Login or SetToken.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		token:   token,
	}
}

// SetToken replaces the bearer token and forgets the cached user.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.user = nil
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.user = resp.User
	c.mu.Unlock()
	return &resp, nil
}

// Logout ends the session on the server and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// Me returns the signed in user, fetching it once per token.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	c.mu.RLock()
	u, token := c.user, c.token
	c.mu.RUnlock()
	if u != nil {
		return u, nil
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.token == token {
		c.user = &user
	}
	c.mu.Unlock()
	return &user, nil
}

func (c *Client) CurrentUser(ctx context.Context) (string, bool) {
	u, err := c.Me(ctx)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(u.ID), true
}

// EncodeQuery renders q as the query string the tables endpoint reads.
func EncodeQuery(q Query) url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add("eq."+f.Column, fmt.Sprint(f.Value))
	}
	if q.OrderBy != nil {
		dir := "desc"
		if q.OrderBy.Ascending {
			dir = "asc"
		}
		v.Set("order", q.OrderBy.Column+"."+dir)
	}
	if q.Range != nil {
		v.Set("range", fmt.Sprintf("%d-%d", q.Range.From, q.Range.To))
	}
	if q.Count {
		v.Set("count", "exact")
	}
	return v
}

// DecodeQuery is the inverse of EncodeQuery.
func DecodeQuery(v url.Values) (Query, error) {
	var q Query
	for key, vals := range v {
		if col, ok := strings.CutPrefix(key, "eq."); ok {
			for _, val := range vals {
				q.Filters = append(q.Filters, Filter{Column: col, Value: val})
			}
		}
	}
	if order := v.Get("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		switch dir {
		case "", "asc":
			q.OrderBy = &Order{Column: col, Ascending: true}
		case "desc":
			q.OrderBy = &Order{Column: col}
		default:
			return q, fmt.Errorf("invalid order direction %q", dir)
		}
	}
	if rng := v.Get("range"); rng != "" {
		from, to, ok := strings.Cut(rng, "-")
		if !ok {
			return q, fmt.Errorf("invalid range %q", rng)
		}
		f, err1 := strconv.Atoi(from)
		t, err2 := strconv.Atoi(to)
		if err1 != nil || err2 != nil || f < 0 || t < f {
			return q, fmt.Errorf("invalid range %q", rng)
		}
		q.Range = &Range{From: f, To: t}
	}
	q.Count = v.Get("count") == "exact"
	return q, nil
}

func (c *Client) Select(ctx context.Context, table string, q Query) (*Result, error) {
	path := "/api/tables/" + url.PathEscape(table)
	if enc := EncodeQuery(q).Encode(); enc != "" {
		path += "?" + enc
	}
	var res Result
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Rows == nil {
		res.Rows = []models.Row{}
	}
	return &res, nil
}

func (c *Client) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	var out models.Row
	if err := c.do(ctx, http.MethodPost, "/api/tables/"+url.PathEscape(table), row, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, table string, row models.Row, id int64) (models.Row, error) {
	var out models.Row
	path := fmt.Sprintf("/api/tables/%s/%d", url.PathEscape(table), id)
	if err := c.do(ctx, http.MethodPatch, path, row, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, table string, id int64) error {
	path := fmt.Sprintf("/api/tables/%s/%d", url.PathEscape(table), id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// RetailerProfile returns the retailer row linked to the signed in user.
func (c *Client) RetailerProfile(ctx context.Context) (models.Row, error) {
	var out models.Row
	if err := c.do(ctx, http.MethodGet, "/api/retailer/profile", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvoicePDF downloads the rendered invoice.
func (c *Client) InvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, fmt.Sprintf("/api/invoices/%d/pdf", id), nil, "application/pdf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Call issues an authenticated JSON request against any service path.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out)
}

// Subscribe dials the realtime endpoint. The subscription ends when the
// server closes the socket, ctx is cancelled or Close is called.
func (c *Client) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	u, err := url.Parse(c.baseURL + "/api/realtime")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if len(kinds) == 0 {
		kinds = AllEvents
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	u.RawQuery = url.Values{"table": {table}, "events": {strings.Join(names, ",")}}.Encode()

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, err
	}

	sub := &wsSubscription{
		conn:   conn,
		events: make(chan ChangeEvent, 16),
		done:   make(chan struct{}),
	}
	go sub.readLoop(ctx)
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *wsSubscription) Events() <-chan ChangeEvent { return s.events }

func (s *wsSubscription) readLoop(ctx context.Context) {
	defer close(s.events)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	for {
		var ev ChangeEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

// send performs the request and turns error statuses into errors. The caller
// closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// ErrorBody is the JSON error document the service writes.
type ErrorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// Error types carried in ErrorBody.Type.
const (
	ErrorTypeValidation = "validation"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeConflict   = "conflict"
	ErrorTypeAuth       = "auth"
	ErrorTypeInternal   = "internal"
)

func decodeError(resp *http.Response) error {
	var body ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// signed in, but not allowed
	case body.Type == ErrorTypeNotFound || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	case body.Type == ErrorTypeConflict || resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body.Error)
	case body.Type == ErrorTypeAuth || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body.Error)
	}
	return &StatusError{Status: resp.StatusCode, Message: body.Error}
}
