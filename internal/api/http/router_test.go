package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/api/http/handlers"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
	"github.com/symptomcheck/symptom-service/internal/observability"
	"github.com/symptomcheck/symptom-service/internal/persistence"
	"github.com/symptomcheck/symptom-service/internal/repository"
	"github.com/symptomcheck/symptom-service/internal/service"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(context.Context, analysis.Request) (*domain.Analysis, error) {
	return &domain.Analysis{
		Conditions:      []string{"Common cold", "Influenza"},
		Recommendations: []string{"Rest", "Drink fluids"},
		Severity:        domain.SeverityMild,
	}, nil
}

type testServer struct {
	app   *fiber.App
	users *repository.MemoryUserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		App:  config.AppConfig{Name: "symptom-service", Version: "test"},
		Auth: config.AuthConfig{JWTSecret: "router-test-secret", TokenTTLMinutes: 7 * 24 * 60, BcryptCost: bcrypt.MinCost, MinPasswordLength: 6},
		History: config.HistoryConfig{
			DefaultLimit: 10,
			MaxLimit:     50,
		},
		Analyzer: config.AnalyzerConfig{CaseTopK: 3, DocumentTopK: 5},
	}
	logger := zap.NewNop()
	users := repository.NewMemoryUserRepository()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:    users,
		Revocations: auth.NewRedisRevocationStore(rdb),
	}, logger)
	knowledge, err := analysis.NewKnowledgeBase(logger)
	require.NoError(t, err)
	dispatcher := events.NewInMemoryDispatcher()
	service.NewIndexingService(dispatcher, knowledge, logger).RegisterHandlers()

	historyService := service.NewHistoryService(cfg.History, service.HistoryDependencies{
		Identity:    authService,
		HistoryRepo: repository.NewMemoryHistoryRepository(),
		Dispatcher:  dispatcher,
	}, logger)
	metrics := observability.NewMetrics()
	symptomService := service.NewSymptomService(cfg.Analyzer, service.SymptomDependencies{
		Analyzer:  fixedAnalyzer{},
		Knowledge: knowledge,
		History:   historyService,
		Metrics:   metrics,
	}, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, &persistence.Redis{Client: rdb}, false),
		Users:          handlers.NewUsersHandler(authService, historyService),
		Symptoms:       handlers.NewSymptomsHandler(symptomService, historyService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		Metrics:        metrics,
	})
	return &testServer{app: app, users: users}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func jsonRequest(method, target, token, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func formLogin(username, password string) *http.Request {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type authBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (s *testServer) register(t *testing.T, email string) authBody {
	t.Helper()
	status, body := s.do(t, jsonRequest(http.MethodPost, "/auth/register", "",
		`{"email":"`+email+`","password":"s3cret-pass","full_name":"Test User"}`))
	require.Equal(t, http.StatusCreated, status, string(body))
	var out authBody
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.AccessToken)
	return out
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out.Error.Code
}

func TestRouter_RegisterAnalyzeHistory(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")
	assert.Equal(t, "bearer", alice.TokenType)

	status, body := srv.do(t, formLogin("alice@example.com", "s3cret-pass"))
	require.Equal(t, http.StatusOK, status, string(body))
	var login authBody
	require.NoError(t, json.Unmarshal(body, &login))
	assert.Equal(t, alice.User.ID, login.User.ID)

	status, body = srv.do(t, jsonRequest(http.MethodPost, "/api/symptoms/analyze", login.AccessToken, `{"symptoms":"fever and cough"}`))
	require.Equal(t, http.StatusOK, status, string(body))
	var analyzed struct {
		QueryID    string   `json:"query_id"`
		Conditions []string `json:"conditions"`
		Severity   string   `json:"severity"`
	}
	require.NoError(t, json.Unmarshal(body, &analyzed))
	assert.NotEmpty(t, analyzed.QueryID)
	assert.Equal(t, []string{"Common cold", "Influenza"}, analyzed.Conditions)
	assert.Equal(t, domain.SeverityMild, analyzed.Severity)

	status, body = srv.do(t, jsonRequest(http.MethodGet, "/auth/history?limit=5", login.AccessToken, ""))
	require.Equal(t, http.StatusOK, status, string(body))
	var history []struct {
		ID       string `json:"id"`
		UserID   string `json:"user_id"`
		Symptoms string `json:"symptoms"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, analyzed.QueryID, history[0].ID)
	assert.Equal(t, alice.User.ID, history[0].UserID)
	assert.Equal(t, "fever and cough", history[0].Symptoms)

	status, body = srv.do(t, jsonRequest(http.MethodGet, "/api/symptoms/history/"+analyzed.QueryID, login.AccessToken, ""))
	assert.Equal(t, http.StatusOK, status, string(body))

	status, body = srv.do(t, jsonRequest(http.MethodGet, "/auth/me", login.AccessToken, ""))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"email":"alice@example.com"`)
}

func TestRouter_HistoryIsolatedBetweenUsers(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")
	bob := srv.register(t, "bob@example.com")

	status, body := srv.do(t, jsonRequest(http.MethodPost, "/api/symptoms/analyze", alice.AccessToken, `{"symptoms":"headache"}`))
	require.Equal(t, http.StatusOK, status, string(body))
	var analyzed struct {
		QueryID string `json:"query_id"`
	}
	require.NoError(t, json.Unmarshal(body, &analyzed))

	status, body = srv.do(t, jsonRequest(http.MethodGet, "/auth/history", bob.AccessToken, ""))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, body = srv.do(t, jsonRequest(http.MethodGet, "/api/symptoms/history/"+analyzed.QueryID, bob.AccessToken, ""))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"history without token", http.MethodGet, "/auth/history", ""},
		{"me with garbage token", http.MethodGet, "/auth/me", "not-a-jwt"},
		{"analyze without token", http.MethodPost, "/api/symptoms/analyze", ""},
	}
	var bodies []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := srv.do(t, jsonRequest(tc.method, tc.path, tc.token, `{"symptoms":"cough"}`))
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
			bodies = append(bodies, string(body))
		})
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestRouter_LoginFailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice@example.com")

	wrongStatus, wrongBody := srv.do(t, formLogin("alice@example.com", "wrong-password"))
	unknownStatus, unknownBody := srv.do(t, formLogin("nobody@example.com", "s3cret-pass"))

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, string(wrongBody), string(unknownBody))
}

func TestRouter_DisabledAccountCannotLogin(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")
	require.NoError(t, srv.users.SetActive(context.Background(), alice.User.ID, false))

	status, body := srv.do(t, formLogin("alice@example.com", "s3cret-pass"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTHENTICATION_FAILED", errorCode(t, body))

	status, _ = srv.do(t, jsonRequest(http.MethodGet, "/auth/me", alice.AccessToken, ""))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")

	status, _ := srv.do(t, jsonRequest(http.MethodPost, "/auth/logout", alice.AccessToken, ""))
	require.Equal(t, http.StatusNoContent, status)

	status, _ = srv.do(t, jsonRequest(http.MethodGet, "/auth/history", alice.AccessToken, ""))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")

	status, body := srv.do(t, jsonRequest(http.MethodGet, "/auth/history?limit=abc", alice.AccessToken, ""))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = srv.do(t, jsonRequest(http.MethodPost, "/api/symptoms/analyze", alice.AccessToken, `{"symptoms":"   "}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = srv.do(t, jsonRequest(http.MethodPost, "/auth/register", "",
		`{"email":"long@example.com","password":"`+strings.Repeat("a", 80)+`","full_name":"Long"}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
	assert.Contains(t, string(body), `"password"`)

	status, body = srv.do(t, jsonRequest(http.MethodPost, "/auth/register", "", `{"email":"alice@example.com","password":"s3cret-pass","full_name":"Again"}`))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(t, body))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"redis":"ok"`)

	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "symptom_http_requests_total")
}

func TestRouter_UnknownRouteRendersErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, errorCode(t, body))
}

func multipartRequest(t *testing.T, target, token, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRouter_AnalyzeImage(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	status, body := srv.do(t, multipartRequest(t, "/api/symptoms/analyze-image", alice.AccessToken,
		"image", "rash.png", img.Bytes(), map[string]string{"symptoms": "itchy rash"}))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"symptoms":"Image: rash.png - itchy rash"`)

	status, body = srv.do(t, multipartRequest(t, "/api/symptoms/analyze-image", alice.AccessToken,
		"image", "notes.png", []byte("not an image"), nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
}

func TestRouter_UploadPDFRequiresFile(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice@example.com")

	status, body := srv.do(t, multipartRequest(t, "/api/symptoms/upload-pdf", alice.AccessToken,
		"document", "guide.pdf", []byte("%PDF-1.4"), nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = srv.do(t, multipartRequest(t, "/api/symptoms/upload-pdf", alice.AccessToken,
		"pdf", "guide.txt", []byte("plain text"), nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
}
