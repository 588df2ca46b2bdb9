package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

type scriptedModel struct {
	replies []string
	err     error
	prompts []string
	roles   []schema.ChatMessageType
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		m.roles = append(m.roles, msg.Role)
	}
	human := messages[len(messages)-1].Parts[0].(llms.TextContent)
	m.prompts = append(m.prompts, human.Text)
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func TestLLMAnalyzer_ParsesReplyAndIncludesContext(t *testing.T) {
	model := &scriptedModel{replies: []string{"CONDITIONS:\n1. Influenza\nRECOMMENDATIONS:\n1. Rest at home\nSEVERITY: mild"}}
	analyzer := NewLLMAnalyzerWithModel(model, time.Second, nil)

	got, err := analyzer.Analyze(context.Background(), Request{
		Symptoms: "fever and cough",
		Context:  []string{"Similar case: chills - Conditions: Influenza"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Influenza"}, got.Conditions)
	assert.Equal(t, domain.SeverityMild, got.Severity)
	require.Len(t, model.prompts, 1)
	assert.Equal(t, []schema.ChatMessageType{schema.ChatMessageTypeSystem, schema.ChatMessageTypeHuman}, model.roles)
	assert.Contains(t, model.prompts[0], "fever and cough")
	assert.Contains(t, model.prompts[0], "Similar case: chills")
}

func TestLLMAnalyzer_RetriesAfterAcknowledgment(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Okay, I understand. I will analyze your symptoms shortly.",
		"CONDITIONS:\n1. Migraine\nRECOMMENDATIONS:\n1. Rest in a dark room\nSEVERITY: moderate",
	}}
	got, err := NewLLMAnalyzerWithModel(model, 0, nil).Analyze(context.Background(), Request{Symptoms: "headache"})
	require.NoError(t, err)
	assert.Len(t, model.prompts, 2)
	assert.Equal(t, []string{"Migraine"}, got.Conditions)
}

func TestLLMAnalyzer_Errors(t *testing.T) {
	analyzer := NewLLMAnalyzerWithModel(&scriptedModel{err: errors.New("upstream down")}, time.Second, nil)
	_, err := analyzer.Analyze(context.Background(), Request{Symptoms: "cough"})
	assert.Error(t, err)

	_, err = analyzer.Analyze(context.Background(), Request{Symptoms: "  "})
	assert.Error(t, err)

	short := NewLLMAnalyzerWithModel(&scriptedModel{replies: []string{"ok"}}, time.Second, nil)
	_, err = short.Analyze(context.Background(), Request{Symptoms: "cough"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractPDFText_RejectsGarbage(t *testing.T) {
	_, err := ExtractPDFText(nil)
	assert.Error(t, err)

	_, err = ExtractPDFText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}
