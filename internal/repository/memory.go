package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// MemoryUserRepository keeps accounts in process memory. It is used when no
// database is configured and by tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserRepository builds an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctxUnavailable(ctx, "create user"); err != nil {
		return err
	}
	email := NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return fmt.Errorf("create user: %w", domain.ErrDuplicateEmail)
	}
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = r.now().UTC()
	r.byID[user.ID] = *user
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctxUnavailable(ctx, "get user"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctxUnavailable(ctx, "get user by email"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
	}
	user := r.byID[id]
	return &user, nil
}

func (r *MemoryUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	if err := ctxUnavailable(ctx, "set user active"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("set user active: %w", domain.ErrNotFound)
	}
	user.IsActive = active
	r.byID[id] = user
	return nil
}

// MemoryHistoryRepository keeps analysis records in process memory.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	records []domain.HistoryRecord
	now     func() time.Time
}

// NewMemoryHistoryRepository builds an empty store.
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{now: time.Now}
}

// WithClock replaces the time source used for CreatedAt.
func (r *MemoryHistoryRepository) WithClock(now func() time.Time) *MemoryHistoryRepository {
	r.now = now
	return r
}

func (r *MemoryHistoryRepository) Append(ctx context.Context, record *domain.HistoryRecord) (string, error) {
	if err := ctxUnavailable(ctx, "append history"); err != nil {
		return "", err
	}
	record.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = uuid.NewString()
	record.CreatedAt = r.now().UTC()
	r.records = append(r.records, cloneRecord(*record))
	return record.ID, nil
}

func (r *MemoryHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list history: limit %d: %w", limit, domain.ErrBadArgument)
	}
	if err := ctxUnavailable(ctx, "list history"); err != nil {
		return nil, err
	}

	// Walk newest insert first so the stable sort keeps that order for
	// records sharing a timestamp.
	r.mu.RLock()
	owned := make([]domain.HistoryRecord, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			owned = append(owned, cloneRecord(r.records[i]))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	if len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (r *MemoryHistoryRepository) GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	if err := ctxUnavailable(ctx, "get history"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, record := range r.records {
		if record.ID == id {
			found := cloneRecord(record)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("get history: %w", domain.ErrNotFound)
}

func cloneRecord(record domain.HistoryRecord) domain.HistoryRecord {
	record.Conditions = append([]string{}, record.Conditions...)
	record.Recommendations = append([]string{}, record.Recommendations...)
	return record
}
