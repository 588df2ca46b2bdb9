package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
	"github.com/symptomcheck/symptom-service/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			TokenTTLMinutes:   7 * 24 * 60,
			BcryptCost:        bcrypt.MinCost,
			MinPasswordLength: 6,
		},
		History:  config.HistoryConfig{DefaultLimit: 10, MaxLimit: 50},
		Analyzer: config.AnalyzerConfig{CaseTopK: 3, DocumentTopK: 5},
	}
}

type fixture struct {
	cfg        config.Config
	clock      *testClock
	users      *repository.MemoryUserRepository
	records    *countingHistoryRepo
	dispatcher events.Dispatcher
	auth       *AuthService
	history    *HistoryService
}

func newFixture(t *testing.T, revocations auth.RevocationStore) *fixture {
	t.Helper()
	cfg := testConfig()
	clock := &testClock{now: time.Now()}
	users := repository.NewMemoryUserRepository()
	records := &countingHistoryRepo{HistoryRepository: repository.NewMemoryHistoryRepository()}
	dispatcher := events.NewInMemoryDispatcher()

	authSvc := NewAuthService(cfg, AuthDependencies{
		UserRepo:     users,
		Revocations:  revocations,
		TokenManager: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL(), auth.WithClock(clock.Now)),
	}, nil)
	historySvc := NewHistoryService(cfg.History, HistoryDependencies{
		Identity:    authSvc,
		HistoryRepo: records,
		Dispatcher:  dispatcher,
	}, nil)

	return &fixture{
		cfg:        cfg,
		clock:      clock,
		users:      users,
		records:    records,
		dispatcher: dispatcher,
		auth:       authSvc,
		history:    historySvc,
	}
}

func (f *fixture) register(t *testing.T, email, name string) (*domain.User, string) {
	t.Helper()
	user, token, _, err := f.auth.Register(context.Background(), email, "password123", name)
	require.NoError(t, err)
	return user, token
}

type countingHistoryRepo struct {
	repository.HistoryRepository
	mu      sync.Mutex
	appends int
}

func (r *countingHistoryRepo) Append(ctx context.Context, record *domain.HistoryRecord) (string, error) {
	r.mu.Lock()
	r.appends++
	r.mu.Unlock()
	return r.HistoryRepository.Append(ctx, record)
}

func (r *countingHistoryRepo) Appends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appends
}

type stubAnalyzer struct {
	mu       sync.Mutex
	result   domain.Analysis
	err      error
	requests []analysis.Request
}

func (a *stubAnalyzer) Analyze(_ context.Context, req analysis.Request) (*domain.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	result := a.result
	return &result, nil
}

func (a *stubAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *stubAnalyzer) LastRequest() analysis.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 30 * time.Second, nil
}
