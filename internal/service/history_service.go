package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
	"github.com/symptomcheck/symptom-service/internal/repository"
)

// RecordInput is the content of one analysis to persist.
type RecordInput struct {
	Kind            string
	SymptomsText    string
	Severity        string
	Conditions      []string
	Recommendations []string
	AnalysisNote    *string
	ImageFilename   *string
	PDFName         *string
}

// HistoryService records analyses and serves each user's own history.
type HistoryService struct {
	identity     auth.Identifier
	history      repository.HistoryRepository
	dispatcher   events.Dispatcher
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// HistoryDependencies bundles collaborators for the history service.
type HistoryDependencies struct {
	Identity    auth.Identifier
	HistoryRepo repository.HistoryRepository
	Dispatcher  events.Dispatcher
}

// NewHistoryService builds the service.
func NewHistoryService(cfg config.HistoryConfig, deps HistoryDependencies, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		identity:     deps.Identity,
		history:      deps.HistoryRepo,
		dispatcher:   deps.Dispatcher,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       logger,
	}
}

// RecordAnalysis identifies the caller and appends a record owned by them.
// Nothing is written when identification fails.
func (s *HistoryService) RecordAnalysis(ctx context.Context, token string, input RecordInput) (*domain.HistoryRecord, error) {
	user, err := s.identity.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.RecordForUser(ctx, user, input)
}

// GetHistory returns the caller's newest records.
func (s *HistoryService) GetHistory(ctx context.Context, token string, limit int) ([]domain.HistoryRecord, error) {
	user, err := s.identity.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.HistoryForUser(ctx, user, limit)
}

// GetRecord returns one of the caller's records.
func (s *HistoryService) GetRecord(ctx context.Context, token, id string) (*domain.HistoryRecord, error) {
	user, err := s.identity.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.RecordForUserByID(ctx, user, id)
}

// RecordForUser appends a record for an already identified user.
func (s *HistoryService) RecordForUser(ctx context.Context, user *domain.User, input RecordInput) (*domain.HistoryRecord, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(input.SymptomsText) == "" {
		verr := domain.NewValidationError()
		verr.Add("symptoms", "is required")
		return nil, verr
	}

	record := &domain.HistoryRecord{
		UserID:          user.ID,
		SymptomsText:    input.SymptomsText,
		Severity:        input.Severity,
		Conditions:      input.Conditions,
		Recommendations: input.Recommendations,
		AnalysisNote:    input.AnalysisNote,
		ImageFilename:   input.ImageFilename,
		PDFName:         input.PDFName,
	}
	if record.Severity == "" {
		record.Severity = domain.SeverityUnknown
	}
	record.Normalize()

	if _, err := s.history.Append(ctx, record); err != nil {
		return nil, err
	}
	s.publishRecorded(ctx, input.Kind, record)
	return record, nil
}

// HistoryForUser lists an already identified user's records.
func (s *HistoryService) HistoryForUser(ctx context.Context, user *domain.User, limit int) ([]domain.HistoryRecord, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	effective, err := s.ResolveLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.history.ListByUser(ctx, user.ID, effective)
}

// RecordForUserByID fetches a record and hides it unless user owns it.
func (s *HistoryService) RecordForUserByID(ctx context.Context, user *domain.User, id string) (*domain.HistoryRecord, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	record, err := s.history.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.UserID != user.ID {
		return nil, fmt.Errorf("get history: %w", domain.ErrNotFound)
	}
	return record, nil
}

// ResolveLimit applies the default for 0 and clamps to the maximum.
func (s *HistoryService) ResolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		verr := domain.NewValidationError()
		verr.Add("limit", "must not be negative")
		return 0, verr
	case limit == 0:
		return s.defaultLimit, nil
	case limit > s.maxLimit:
		return s.maxLimit, nil
	}
	return limit, nil
}

func (s *HistoryService) publishRecorded(ctx context.Context, kind string, record *domain.HistoryRecord) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAnalysisRecorded,
		UserID:    record.UserID,
		Timestamp: time.Now().UTC(),
		Payload: events.AnalysisRecordedPayload{
			RecordID:        record.ID,
			Kind:            kind,
			Symptoms:        record.SymptomsText,
			Severity:        record.Severity,
			Conditions:      record.Conditions,
			Recommendations: record.Recommendations,
		},
	}
	// The record is already durable; subscriber failures do not undo it.
	if err := s.dispatcher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("analysis_recorded subscribers failed", zap.String("record_id", record.ID), zap.Error(err))
	}
}
