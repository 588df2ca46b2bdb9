package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
	"github.com/symptomcheck/symptom-service/internal/service"
)

func TestStartIndexingWorker(t *testing.T) {
	assert.NotPanics(t, func() { StartIndexingWorker(nil) })

	kb, err := analysis.NewKnowledgeBase(nil)
	require.NoError(t, err)
	dispatcher := events.NewInMemoryDispatcher()
	StartIndexingWorker(service.NewIndexingService(dispatcher, kb, nil))

	err = dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventAnalysisRecorded,
		Payload: events.AnalysisRecordedPayload{
			RecordID: "r1", Kind: domain.KindText, Symptoms: "runny nose",
			Conditions: []string{"Common cold"}, Recommendations: []string{"Rest"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, kb.CaseCount())
}
