package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/daycast/internal/auth"
	"github.com/hitoshi/daycast/internal/event"
	"github.com/hitoshi/daycast/internal/metrics"
	"github.com/hitoshi/daycast/internal/middleware"
	"github.com/hitoshi/daycast/internal/model"
	"github.com/hitoshi/daycast/internal/repository"
	"github.com/hitoshi/daycast/internal/security"
)

// --- インメモリリポジトリ ---

type memoryStore struct {
	mu     sync.Mutex
	users  map[string]model.User
	events map[string]model.EventMap
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[string]model.User),
		events: make(map[string]model.EventMap),
	}
}

func (m *memoryStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memoryStore) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.Username]; ok && existing.HasCredential() {
		return repository.ErrUserExists
	}
	m.users[user.Username] = *user
	return nil
}

func (m *memoryStore) UpdatePassword(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[username]
	u.PasswordHash = hash
	m.users[username] = u
	return nil
}

func (m *memoryStore) ListByUser(_ context.Context, username string) (model.EventMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[username].Clone(), nil
}

func (m *memoryStore) ReplaceForUser(_ context.Context, username string, events model.EventMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		m.users[username] = model.User{Username: username}
	}
	m.events[username] = events.Clone()
	return nil
}

var (
	_ repository.UserRepository  = (*memoryStore)(nil)
	_ repository.EventRepository = (*memoryStore)(nil)
)

// newTestRouter は実サービスとインメモリリポジトリでルーターを構成する。
func newTestRouter(t *testing.T, limiterCfg middleware.RateLimiterConfig) (http.Handler, *memoryStore, *prometheus.Registry) {
	t.Helper()

	store := newMemoryStore()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	rl := middleware.NewRateLimiter(limiterCfg)
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		RequestTimeout:    5 * time.Second,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		AccountService:    auth.NewService(store, auth.ServiceConfig{BcryptCost: 4}),
		EventService:      event.NewEventService(store, security.NewTitleSanitizer()),
	})
	return router, store, reg
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "198.51.100.7:4321"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- シナリオテスト ---

func TestRouter_EventsRoundTrip(t *testing.T) {
	router, store, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	body := `{"user":"bob","events":{"2025-08-18":[{"title":"Standup","start":"09:00","end":"09:15","allDay":false}]}}`
	w := doRequest(router, http.MethodPost, "/events", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /events status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/events?user=bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /events status = %d", w.Code)
	}

	var resp struct {
		Events model.EventMap `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}

	got := resp.Events["2025-08-18"]
	if len(resp.Events) != 1 || len(got) != 1 {
		t.Fatalf("events = %+v, want 1件", resp.Events)
	}
	e := got[0]
	if e.Title != "Standup" || e.Start != "09:00" || e.End != "09:15" || e.AllDay {
		t.Errorf("event = %+v", e)
	}
	if e.Color != model.DefaultEventColor {
		t.Errorf("color = %q, want %q", e.Color, model.DefaultEventColor)
	}
	if e.ID == "" {
		t.Error("保存時にIDが採番されるべき")
	}

	// 予定の保存で資格情報なしのユーザーが作成される
	u, _ := store.FindByUsername(context.Background(), "bob")
	if u == nil || u.HasCredential() {
		t.Errorf("user = %+v, want 資格情報なしのユーザー", u)
	}
}

func TestRouter_OversizedEventFieldsAreRejected(t *testing.T) {
	router, store, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	tests := []struct {
		name string
		body string
	}{
		{"ID", `{"user":"bob","events":{"2025-08-18":[{"id":"` + strings.Repeat("i", 65) + `","title":"X"}]}}`},
		{"色", `{"user":"bob","events":{"2025-08-18":[{"title":"X","color":"` + strings.Repeat("f", 33) + `"}]}}`},
		{"ユーザー名", `{"user":"` + strings.Repeat("u", 256) + `","events":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/events", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get(middleware.ErrorCodeHeader); got != model.ErrCodeInvalidPayload {
				t.Errorf("X-Error-Code = %q, want %q", got, model.ErrCodeInvalidPayload)
			}
		})
	}

	if u, _ := store.FindByUsername(context.Background(), "bob"); u != nil {
		t.Errorf("検証エラー時にユーザーが作成された: %+v", u)
	}
}

func TestRouter_UnknownUserEventsAreEmpty(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := doRequest(router, http.MethodGet, "/events?user=ghost", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"events":{}}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_DuplicateSignupKeepsFirstRecord(t *testing.T) {
	router, store, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"alice","password":"pw1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("1回目のsignup status = %d, body = %s", w.Code, w.Body.String())
	}
	first, _ := store.FindByUsername(context.Background(), "alice")

	w = doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"alice","password":"other"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("2回目のsignup status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if code := w.Header().Get(middleware.ErrorCodeHeader); code != model.ErrCodeUserExists {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserExists)
	}

	after, _ := store.FindByUsername(context.Background(), "alice")
	if after.PasswordHash != first.PasswordHash {
		t.Error("最初のレコードが変更されてはならない")
	}

	// 元のパスワードでログインできる
	w = doRequest(router, http.MethodPost, "/auth", `{"action":"login","username":"alice","password":"pw1"}`)
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d", w.Code, http.StatusOK)
	}
}

// POST /events だけで作られた資格情報なしのユーザーには後から登録でき、予定も残る。
func TestRouter_SignupClaimsEventsOnlyUser(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	body := `{"user":"carol","events":{"2025-09-01":[{"title":"Dentist","allDay":true}]}}`
	if w := doRequest(router, http.MethodPost, "/events", body); w.Code != http.StatusOK {
		t.Fatalf("POST /events status = %d, body = %s", w.Code, w.Body.String())
	}

	w := doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"carol","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("signup status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/events?user=carol", "")
	var resp struct {
		Events model.EventMap `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if got := resp.Events["2025-09-01"]; len(got) != 1 || got[0].Title != "Dentist" {
		t.Errorf("登録前の予定が残っていない: %+v", resp.Events)
	}

	// 資格情報が付いた後は USER_EXISTS
	w = doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"carol","password":"other"}`)
	if code := w.Header().Get(middleware.ErrorCodeHeader); w.Code != http.StatusBadRequest || code != model.ErrCodeUserExists {
		t.Errorf("2回目のsignup status = %d, code = %q", w.Code, code)
	}
}

func TestRouter_LoginRejectsWrongPassword(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"alice","password":"secret123"}`)

	w := doRequest(router, http.MethodPost, "/auth", `{"action":"login","username":"alice","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = doRequest(router, http.MethodPost, "/auth", `{"action":"changePassword","username":"alice","password":"secret123"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("newPassword欠落 status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRouter_AuthMethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := doRequest(router, http.MethodGet, "/auth", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouter_PreflightHandledByCORS(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	req := httptest.NewRequest(http.MethodGet, "/events?user=bob", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("未許可のOriginに Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_AuthRateLimited(t *testing.T) {
	cfg := middleware.DefaultRateLimiterConfig()
	cfg.AuthRate = 0.001
	cfg.AuthBurst = 2
	router, _, _ := newTestRouter(t, cfg)

	body := `{"action":"login","username":"alice","password":"x"}`
	for i := 0; i < 2; i++ {
		if w := doRequest(router, http.MethodPost, "/auth", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusUnauthorized)
		}
	}

	w := doRequest(router, http.MethodPost, "/auth", body)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// /events は認証のレート制限を受けない
	if w := doRequest(router, http.MethodGet, "/events?user=alice", ""); w.Code != http.StatusOK {
		t.Errorf("GET /events status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	doRequest(router, http.MethodPost, "/auth", `{"action":"signup","username":"carol","password":"pw"}`)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`daycast_auth_requests_total{action="signup",result="success"} 1`,
		"daycast_http_status_total",
		"daycast_request_latency_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics に %q が含まれていない", want)
		}
	}
}

func TestRouter_SecurityHeadersAndHealth(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := doRequest(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestRouter_ExportICS(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	doRequest(router, http.MethodPost, "/events", `{"user":"bob","events":{"2025-08-18":[{"id":"t1","title":"Trip","start":"","end":"","allDay":true}]}}`)

	w := doRequest(router, http.MethodGet, "/events/ics?user=bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Trip", "UID:t1@daycast"} {
		if !strings.Contains(body, want) {
			t.Errorf("iCalendarに %q が含まれていない", want)
		}
	}
}
