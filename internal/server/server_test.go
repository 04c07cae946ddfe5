package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/store"
)

type testEnv struct {
	t     *testing.T
	srv   *Server
	http  *httptest.Server
	store *store.Store
}

func newTestEnv(t *testing.T, rl config.RateLimitConfig) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "planhaus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := New(Config{RateLimit: rl}, st)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.hub.Close)
	return &testEnv{t: t, srv: s, http: ts, store: st}
}

func defaultEnv(t *testing.T) *testEnv {
	return newTestEnv(t, config.RateLimitConfig{})
}

// do sends a JSON request and decodes a JSON response into out.
func (e *testEnv) do(method, path, token string, body, out any) int {
	e.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rdr)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (e *testEnv) signup(email string) (model.User, string) {
	e.t.Helper()
	u, err := e.store.CreateUser(context.Background(), email, strings.Split(email, "@")[0], "correct horse")
	require.NoError(e.t, err)
	var resp authResponse
	code := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "correct horse"}, &resp)
	require.Equal(e.t, http.StatusOK, code)
	return u, resp.SessionID
}

func (e *testEnv) createProject(token, name string) model.WeddingProject {
	e.t.Helper()
	var p model.WeddingProject
	code := e.do(http.MethodPost, "/api/projects", token,
		map[string]any{"name": name, "budgetTotal": "10,000", "weddingDate": "2027-06-12"}, &p)
	require.Equal(e.t, http.StatusCreated, code)
	return p
}

func TestHealthz(t *testing.T) {
	e := defaultEnv(t)
	resp, err := http.Get(e.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestAuthFlow(t *testing.T) {
	e := defaultEnv(t)
	_, token := e.signup("ava@example.com")

	var errBody errorBody
	code := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ava@example.com", "password": "nope"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid email or password", errBody.Message)

	code = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "required", errBody.Fields["email"])

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/projects", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/projects", "bogus", nil, nil))
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/projects", token, nil, nil))

	// rotate via a fresh login to get the refresh token
	var login authResponse
	e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ava@example.com", "password": "correct horse"}, &login)
	var refreshed authResponse
	code = e.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken}, &refreshed)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, login.SessionID, refreshed.SessionID)
	assert.Equal(t, "ava@example.com", refreshed.User.Email)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/projects", login.SessionID, nil, nil))
	assert.Equal(t, http.StatusUnauthorized,
		e.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken}, nil))

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/auth/logout", refreshed.SessionID, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/projects", refreshed.SessionID, nil, nil))
}

func TestProjectsAndMembership(t *testing.T) {
	e := defaultEnv(t)
	_, ava := e.signup("ava@example.com")
	_, sam := e.signup("sam@example.com")

	p := e.createProject(ava, "Ava & Sam")
	assert.Equal(t, "10000", p.BudgetTotal)
	require.NotNil(t, p.WeddingDate)

	var list []model.WeddingProject
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/projects", ava, nil, &list))
	assert.Len(t, list, 1)

	path := "/api/projects/" + p.ID.String()
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, path, sam, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/projects/not-a-uuid", ava, nil, nil))

	code := e.do(http.MethodPost, path+"/members", ava, map[string]string{"email": "sam@example.com", "role": "viewer"}, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, path, sam, nil, nil))
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, path+"/tasks", sam, map[string]string{"title": "x"}, nil))

	var updated model.WeddingProject
	code = e.do(http.MethodPatch, path, ava, map[string]any{"venue": "Orchard Barn", "version": p.Version}, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Orchard Barn", updated.Venue)
	assert.Equal(t, p.Version+1, updated.Version)

	code = e.do(http.MethodPatch, path, ava, map[string]any{"venue": "Elsewhere", "version": p.Version}, nil)
	assert.Equal(t, http.StatusConflict, code)

	var errBody errorBody
	code = e.do(http.MethodPatch, path, ava, map[string]any{"budgetTotal": "-5", "name": ""}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errBody.Fields, "budgetTotal")
	assert.Contains(t, errBody.Fields, "name")
}

func TestTaskCRUDWithVersions(t *testing.T) {
	e := defaultEnv(t)
	_, ava := e.signup("ava@example.com")
	p := e.createProject(ava, "P")
	base := "/api/projects/" + p.ID.String() + "/tasks"

	var errBody errorBody
	code := e.do(http.MethodPost, base, ava, map[string]string{"priority": "urgent"}, &errBody)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "required", errBody.Fields["title"])
	assert.Contains(t, errBody.Fields, "priority")

	var task model.Task
	code = e.do(http.MethodPost, base, ava, map[string]string{"title": "Book venue", "dueDate": "2026-03-01"}, &task)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, 1, task.Version)

	item := base + "/" + task.ID.String()
	var done model.Task
	code = e.do(http.MethodPatch, item, ava, map[string]any{"status": "Completed", "version": 1}, &done)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.TaskCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 2, done.Version)

	// a second tab still holding version 1 is rejected
	assert.Equal(t, http.StatusConflict, e.do(http.MethodPatch, item, ava, map[string]any{"title": "stale", "version": 1}, nil))
	// without a version the edit applies to the current row
	var reopened model.Task
	require.Equal(t, http.StatusOK, e.do(http.MethodPatch, item, ava, map[string]any{"status": "pending"}, &reopened))
	assert.Nil(t, reopened.CompletedAt)

	var list []model.Task
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, base, ava, nil, &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, item, ava, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, item, ava, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPatch, base+"/nope", ava, map[string]any{}, nil))
}

func TestDashboardStats(t *testing.T) {
	e := defaultEnv(t)
	_, ava := e.signup("ava@example.com")

	var empty model.DashboardStats
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/dashboard/stats", ava, nil, &empty))
	assert.Equal(t, model.DashboardStats{}, empty)

	p := e.createProject(ava, "P")
	pp := "/api/projects/" + p.ID.String()
	e.do(http.MethodPost, pp+"/tasks", ava, map[string]string{"title": "a", "status": "completed"}, nil)
	e.do(http.MethodPost, pp+"/tasks", ava, map[string]string{"title": "b"}, nil)
	e.do(http.MethodPost, pp+"/guests", ava, map[string]string{"name": "Kim", "rsvpStatus": "yes"}, nil)
	e.do(http.MethodPost, pp+"/guests", ava, map[string]string{"name": "Lee", "rsvpStatus": "maybe"}, nil)
	e.do(http.MethodPost, pp+"/budget", ava, map[string]string{"category": "Venue", "actualCost": "$4,500"}, nil)
	e.do(http.MethodPost, pp+"/vendors", ava, map[string]string{"name": "Bloom", "status": "booked"}, nil)

	var stats model.DashboardStats
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/dashboard/stats?projectId="+p.ID.String(), ava, nil, &stats))
	assert.Equal(t, p.ID.String(), stats.ProjectID)
	assert.Equal(t, model.TaskStats{Total: 2, Completed: 1}, stats.Tasks)
	assert.Equal(t, model.GuestStats{Total: 2, Confirmed: 1, Pending: 1}, stats.Guests)
	assert.Equal(t, model.BudgetTotals{Total: 10000, Spent: 4500}, stats.Budget)
	assert.Equal(t, model.VendorStats{Total: 1, Booked: 1}, stats.Vendors)

	var byDefault model.DashboardStats
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/dashboard/stats", ava, nil, &byDefault))
	assert.Equal(t, stats, byDefault)

	_, sam := e.signup("sam@example.com")
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/dashboard/stats?projectId="+p.ID.String(), sam, nil, nil))
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/dashboard/stats?projectId=x", sam, nil, nil))
}

func TestActivitiesAndCollaborators(t *testing.T) {
	e := defaultEnv(t)
	ava, token := e.signup("ava@example.com")
	p := e.createProject(token, "P")
	pp := "/api/projects/" + p.ID.String()
	e.do(http.MethodPost, pp+"/vendors", token, map[string]string{"name": "DJ Sol"}, nil)

	var acts []model.Activity
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, pp+"/activities", token, nil, &acts))
	require.Len(t, acts, 2)
	assert.Equal(t, "vendor", acts[0].EntityType)
	assert.Equal(t, "project", acts[1].EntityType)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, pp+"/activities?limit=0", token, nil, nil))

	var collabs []model.Collaborator
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, pp+"/collaborators", token, nil, &collabs))
	require.Len(t, collabs, 1)
	assert.Equal(t, ava.ID, collabs[0].UserID)
	assert.Equal(t, model.RoleOwner, collabs[0].Role)
	assert.False(t, collabs[0].Online)
}

func TestWebSocketActivityAndPresence(t *testing.T) {
	e := defaultEnv(t)
	_, token := e.signup("ava@example.com")
	p := e.createProject(token, "P")

	wsURL := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws?projectId=" + p.ID.String()
	hdr := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	read := func() events.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m events.Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	assert.Equal(t, events.TypeHello, read().Type)
	presence := read()
	assert.Equal(t, events.TypePresence, presence.Type)
	assert.Len(t, presence.Online, 1)

	var collabs []model.Collaborator
	e.do(http.MethodGet, "/api/projects/"+p.ID.String()+"/collaborators", token, nil, &collabs)
	require.Len(t, collabs, 1)
	assert.True(t, collabs[0].Online)

	var g model.Guest
	e.do(http.MethodPost, "/api/projects/"+p.ID.String()+"/guests", token, map[string]string{"name": "Kim"}, &g)
	msg := read()
	assert.Equal(t, events.TypeActivity, msg.Type)
	assert.Equal(t, "guest", msg.EntityType)
	assert.Equal(t, g.ID.String(), msg.EntityID)
	assert.Equal(t, model.ActionCreated, msg.Action)
	assert.Len(t, e.srv.Hub().Recent(p.ID.String()), 2)

	// token query parameter works for clients that cannot set headers
	conn2, resp2, err := websocket.DefaultDialer.Dial(wsURL+"&token="+token, nil)
	require.NoError(t, err)
	resp2.Body.Close()
	conn2.Close()

	_, resp3, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp3.StatusCode)
}

func TestAuthRateLimit(t *testing.T) {
	e := newTestEnv(t, config.RateLimitConfig{AuthPerMinute: 2})
	body := map[string]string{"email": "x@example.com", "password": "y"}
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/auth/login", "", body, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/auth/login", "", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, e.do(http.MethodPost, "/api/auth/login", "", body, nil))
}

func TestAuthRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	e := newTestEnv(t, config.RateLimitConfig{AuthPerMinute: 2})
	h := e.srv.Handler()

	codes := map[int]int{}
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"y"}`))
		req.RemoteAddr = "198.51.100.4:40000"
		req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, map[int]int{http.StatusUnauthorized: 2, http.StatusTooManyRequests: 48}, codes)
	assert.Equal(t, 1, e.srv.authLimiter.Len())
}

func TestAuthRateLimitBehindTrustedProxy(t *testing.T) {
	e := newTestEnv(t, config.RateLimitConfig{AuthPerMinute: 2, TrustedProxies: []string{"127.0.0.1"}})
	h := e.srv.Handler()

	login := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"y"}`))
		req.RemoteAddr = "127.0.0.1:50000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		assert.Equal(t, http.StatusUnauthorized, login(client))
		assert.Equal(t, http.StatusUnauthorized, login(client))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("203.0.113.1"))
	assert.Equal(t, 2, e.srv.authLimiter.Len())
}

func TestHubRingBuffer(t *testing.T) {
	h := NewHub(2, nil)
	h.Broadcast(events.Message{ProjectID: "p", EntityID: "1"})
	h.Broadcast(events.Message{ProjectID: "p", EntityID: "2"})
	h.Broadcast(events.Message{ProjectID: "q", EntityID: "3"})

	assert.Equal(t, 2, h.RecentCount())
	recent := h.Recent("p")
	require.Len(t, recent, 1)
	assert.Equal(t, "2", recent[0].EntityID)
}

func TestStatusEndpoint(t *testing.T) {
	e := defaultEnv(t)
	e.srv.sweep(context.Background())
	var st Status
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/status", "", nil, &st))
	assert.False(t, st.StartedAt.IsZero())
	assert.False(t, st.LastSweepAt.IsZero())
}

func TestExponentAmountsAreRejected(t *testing.T) {
	e := defaultEnv(t)
	_, ava := e.signup("ava@example.com")
	p := e.createProject(ava, "P")
	pp := "/api/projects/" + p.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		field  string
		value  string
	}{
		{"budget item overflow", http.MethodPost, pp + "/budget", "actualCost", "1e400"},
		{"budget item huge exponent", http.MethodPost, pp + "/budget", "estimatedCost", "1e2000000000"},
		{"project total huge exponent", http.MethodPatch, pp, "budgetTotal", "1e2000000000"},
		{"project total too many digits", http.MethodPatch, pp, "budgetTotal", "12345678901234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errBody errorBody
			body := map[string]string{"category": "Venue", tt.field: tt.value}
			code := e.do(tt.method, tt.path, ava, body, &errBody)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, errBody.Fields, tt.field)
		})
	}

	var stats model.DashboardStats
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/dashboard/stats?projectId="+p.ID.String(), ava, nil, &stats))
	assert.Equal(t, model.BudgetTotals{Total: 10000}, stats.Budget)
}
