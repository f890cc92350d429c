package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/app"
	"github.com/magicjournal/server/internal/config"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*service.GoogleIdentity

func (f fakeVerifier) Verify(_ context.Context, rawToken string) (*service.GoogleIdentity, error) {
	identity, ok := f[rawToken]
	if !ok {
		return nil, apperr.Unauthorized("invalid Google ID token")
	}
	copied := *identity
	return &copied, nil
}

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	cfg := &config.Config{
		AppName:         "MagicJournal",
		AppEnv:          "development",
		AppURL:          "http://localhost:8090",
		FrontendURL:     "http://localhost:5173",
		FrontendOrigins: []string{"http://localhost:5173"},
		SessionSecret:   "routes-test-secret-routes-test-secret",
		SessionExpiry:   time.Hour,
		MetricsUser:     "prom",
		MetricsPass:     "secret",
		AuthRateLimit:   100,
		AuthBurst:       100,
	}

	users := repository.NewUserRepository(database)
	habits := repository.NewHabitRepository(database)
	goals := repository.NewGoalRepository(database)
	entries := repository.NewJournalEntryRepository(database)
	friends := repository.NewFriendRepository(database)
	email := service.NewEmailService("", "noreply@example.com", cfg.FrontendURL, cfg.AppName, true)
	files := service.NewFileService(repository.NewFileRepository(database), nil)
	habitService := service.NewHabitService(habits)
	reconciler := service.NewReconciler(database, goals, entries)
	require.NoError(t, habitService.SeedCatalog(context.Background()))

	verifier := fakeVerifier{
		"tok-ada": {Subject: "sub-ada", Email: "ada@example.com", Name: "Ada"},
		"tok-bob": {Subject: "sub-bob", Email: "bob@example.com", Name: "Bob"},
	}

	a := &app.App{
		Cfg:              cfg,
		DB:               database,
		AuthService:      service.NewAuthService(users, verifier, email, cfg.SessionSecret, cfg.SessionExpiry, false),
		UserService:      service.NewUserService(users, files),
		EmailService:     email,
		FileService:      files,
		HabitService:     habitService,
		GoalService:      service.NewGoalService(database, goals, habits),
		JournalService:   service.NewJournalService(database, entries, goals, reconciler),
		HealthService:    service.NewHealthService(database, repository.NewHealthMetricRepository(database), reconciler),
		FriendService:    service.NewFriendService(database, friends, users, goals, email),
		AssistantService: service.NewAssistantService("http://127.0.0.1:0", "phi3:mini", time.Second),
	}

	metrics.Register()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testServer{handler: SetupRoutes(ctx, a)}
}

func (s *testServer) do(t *testing.T, method, path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.AddCookie(session)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// signIn exchanges a fake ID token for the session cookie
func (s *testServer) signIn(t *testing.T, token string) (*http.Cookie, *model.User) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/google", map[string]string{"id_token": token}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user model.User
	decode(t, rec, &user)

	for _, c := range rec.Result().Cookies() {
		if c.Name == service.SessionCookieName {
			return c, &user
		}
	}
	t.Fatal("session cookie not set")
	return nil, nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (s *testServer) habitID(t *testing.T, session *http.Cookie, name string) string {
	t.Helper()

	rec := s.do(t, http.MethodGet, "/api/habits", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)

	var habits []model.Habit
	decode(t, rec, &habits)
	for _, h := range habits {
		if h.Name == name {
			return h.ID
		}
	}
	t.Fatalf("habit %q not listed", name)
	return ""
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/goals", "/api/auth/me", "/api/journal/entries", "/api/friends"} {
		rec := s.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
	}

	forged := &http.Cookie{Name: service.SessionCookieName, Value: "forged"}
	rec := s.do(t, http.MethodGet, "/api/goals", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/google", map[string]string{"id_token": "bogus"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/google", map[string]any{"id_token": "tok-ada", "allow_create": false}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	session, user := s.signIn(t, "tok-ada")
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, 1, user.Level)

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	decode(t, rec, &me)
	assert.Equal(t, user.ID, me.ID)

	rec = s.do(t, http.MethodPatch, "/api/user/me", map[string]any{"name": "Ada L", "theme": "dark"}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &me)
	assert.Equal(t, "Ada L", me.Name)
	assert.Equal(t, "dark", me.Theme)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", nil, session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), service.SessionCookieName+"=;")
}

func TestJournalReconcileOverHTTP(t *testing.T) {
	s := newTestServer(t)
	session, _ := s.signIn(t, "tok-ada")

	rec := s.do(t, http.MethodPost, "/api/goals", map[string]any{
		"habit_id":     s.habitID(t, session, "Learning"),
		"goal_text":    "Read every day",
		"target_value": 30,
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var goal model.Goal
	decode(t, rec, &goal)

	type submitted struct {
		Entry model.JournalEntry `json:"entry"`
		Goal  model.Goal         `json:"goal"`
	}

	rec = s.do(t, http.MethodPost, "/api/journal/entries", map[string]any{
		"goal_id": goal.ID, "entry_date": "2025-06-01", "value": 15,
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first submitted
	decode(t, rec, &first)
	assert.Equal(t, 5, first.Entry.XPDelta)
	assert.Equal(t, model.CompletionPartial, first.Entry.CompletionLevel)
	assert.Equal(t, 5, first.Goal.XP)

	rec = s.do(t, http.MethodPost, "/api/journal/entries", map[string]any{
		"goal_id": goal.ID, "entry_date": "2025-06-01", "value": 30,
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var second submitted
	decode(t, rec, &second)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, model.CompletionComplete, second.Entry.CompletionLevel)
	assert.Equal(t, 10, second.Goal.XP)

	rec = s.do(t, http.MethodGet, "/api/journal/entries?limit=abc", nil, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"limit must be an integer"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/journal/entries?goal_id="+goal.ID+"&limit=0", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.JournalEntry
	decode(t, rec, &entries)
	assert.Len(t, entries, 1)

	rec = s.do(t, http.MethodDelete, "/api/journal/entries/"+second.Entry.ID, nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted struct {
		Goal model.Goal `json:"goal"`
	}
	decode(t, rec, &deleted)
	assert.Equal(t, 0, deleted.Goal.XP)
}

func TestGoalErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	session, _ := s.signIn(t, "tok-ada")

	rec := s.do(t, http.MethodPost, "/api/goals", `{"habit_id":`, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/goals/missing", nil, session)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/goals/missing", map[string]any{}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/goals", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthOverHTTP(t *testing.T) {
	s := newTestServer(t)
	session, _ := s.signIn(t, "tok-ada")

	rec := s.do(t, http.MethodPost, "/api/health/enable", nil, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enabled struct {
		Goals []model.Goal `json:"goals"`
	}
	decode(t, rec, &enabled)
	assert.Len(t, enabled.Goals, 3)

	rec = s.do(t, http.MethodPost, "/api/health/daily", map[string]any{
		"records": []map[string]any{
			{"date": "2025-06-01", "steps": 4000, "exercise_minutes": 30, "sleep_minutes": 240},
			{"date": "2025-06-02", "steps": 8000},
		},
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ingest struct {
		Updated      int `json:"updated"`
		GoalsUpdated int `json:"goals_updated"`
	}
	decode(t, rec, &ingest)
	assert.Equal(t, 2, ingest.Updated)
	assert.Equal(t, 3, ingest.GoalsUpdated)

	rec = s.do(t, http.MethodPost, "/api/health/daily", map[string]any{
		"records": []map[string]any{{"date": "June 1st"}},
	}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/health/daily?days=week", nil, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/health/daily?days=500", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records"`)
}

func TestFriendsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ada, _ := s.signIn(t, "tok-ada")
	bob, bobUser := s.signIn(t, "tok-bob")

	rec := s.do(t, http.MethodPost, "/api/friends/requests", map[string]string{"email": "bob@example.com"}, ada)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent service.SendResult
	decode(t, rec, &sent)

	rec = s.do(t, http.MethodPost, "/api/friends/requests/"+sent.Request.ID+"/accept", nil, ada)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/friends/requests/"+sent.Request.ID+"/accept", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)

	rec = s.do(t, http.MethodPost, "/api/friends/requests/"+sent.Request.ID+"/decline", nil, bob)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/friends/"+bobUser.ID+"/habits", nil, ada)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/friends/"+bobUser.ID, nil, ada)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/friends/"+bobUser.ID+"/habits", nil, ada)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOriginCheckAppliesToAPI(t *testing.T) {
	s := newTestServer(t)
	session, _ := s.signIn(t, "tok-ada")

	req := httptest.NewRequest(http.MethodPost, "/api/health/enable", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpointRequiresBasicAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "secret")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAssistantUnavailableIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	session, _ := s.signIn(t, "tok-ada")

	rec := s.do(t, http.MethodPost, "/api/ai/respond", map[string]string{"prompt": "hello"}, session)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"assistant request failed"}`, rec.Body.String())
}
