package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/events"
)

func TestIndexingService_IndexesOnlyTextCasesWithFindings(t *testing.T) {
	kb, err := analysis.NewKnowledgeBase(nil)
	require.NoError(t, err)
	dispatcher := events.NewInMemoryDispatcher()
	NewIndexingService(dispatcher, kb, nil).RegisterHandlers()
	ctx := context.Background()

	publish := func(payload events.AnalysisRecordedPayload) error {
		return dispatcher.Publish(ctx, events.Event{Type: events.EventAnalysisRecorded, Payload: payload})
	}

	require.NoError(t, publish(events.AnalysisRecordedPayload{
		RecordID: "r1", Kind: domain.KindText, Symptoms: "sore throat",
		Conditions: []string{"Pharyngitis"}, Recommendations: []string{"Gargle salt water"},
	}))
	require.NoError(t, publish(events.AnalysisRecordedPayload{
		RecordID: "r2", Kind: domain.KindPDFUpload, Symptoms: "Uploaded medical document: a.pdf",
		Conditions: []string{"Processed 1 text chunks"}, Recommendations: []string{"x"},
	}))
	require.NoError(t, publish(events.AnalysisRecordedPayload{
		RecordID: "r3", Kind: domain.KindText, Symptoms: "nothing found",
	}))
	assert.Equal(t, 1, kb.CaseCount())

	err = dispatcher.Publish(ctx, events.Event{Type: events.EventAnalysisRecorded, Payload: "bogus"})
	assert.Error(t, err)
}
