package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
)

// IndexingService adds completed text analyses to the knowledge base so later
// analyses can cite similar cases.
type IndexingService struct {
	dispatcher events.Dispatcher
	knowledge  *analysis.KnowledgeBase
	logger     *zap.Logger
}

// NewIndexingService creates the service.
func NewIndexingService(dispatcher events.Dispatcher, knowledge *analysis.KnowledgeBase, logger *zap.Logger) *IndexingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexingService{dispatcher: dispatcher, knowledge: knowledge, logger: logger}
}

// RegisterHandlers subscribes to events.
func (s *IndexingService) RegisterHandlers() {
	if s.dispatcher == nil || s.knowledge == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventAnalysisRecorded, s.handleAnalysisRecorded)
}

func (s *IndexingService) handleAnalysisRecorded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AnalysisRecordedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.Kind != domain.KindText {
		return nil
	}
	finding := domain.Analysis{Conditions: payload.Conditions, Recommendations: payload.Recommendations}
	if !finding.HasFindings() {
		return nil
	}
	if err := s.knowledge.AddCase(ctx, payload.RecordID, payload.Symptoms, payload.Conditions, payload.Recommendations); err != nil {
		return err
	}
	s.logger.Debug("indexed case", zap.String("record_id", payload.RecordID))
	return nil
}
