package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
)

// Request is one analysis input. Context lines come from the knowledge base.
type Request struct {
	Symptoms string
	Context  []string
}

// Analyzer turns symptoms into conditions, recommendations and a severity.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*domain.Analysis, error)
}

// ChatModel is the slice of a langchaingo model the analyzer needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

const systemPrompt = "You are a medical AI that analyzes symptoms. You MUST respond in the exact format requested. " +
	"Never acknowledge, explain, or ask questions. Provide the analysis immediately in the specified format. " +
	"Start every response with 'CONDITIONS:'"

const analysisPrompt = `ANALYZE THE FOLLOWING SYMPTOMS NOW:

Symptoms: %s
%s
IMPORTANT: This is for educational purposes only. Not medical advice.

Provide your analysis in EXACTLY this format:

CONDITIONS:
1. [Specific condition name]
2. [Specific condition name]
3. [Specific condition name]
4. [Specific condition name]
5. [Specific condition name]

RECOMMENDATIONS:
1. [Specific actionable step]
2. [Specific actionable step]
3. [Specific actionable step]
4. [Specific actionable step]
5. [Specific actionable step]

SEVERITY: [mild OR moderate OR severe]

Start your response with "CONDITIONS:" immediately.`

const retryPrompt = "STOP. Do NOT acknowledge. ANALYZE THESE SYMPTOMS NOW: %s\n\n" +
	"Start your response with 'CONDITIONS:' followed by a numbered list. Then 'RECOMMENDATIONS:' " +
	"followed by a numbered list. Then 'SEVERITY:' with one word."

var acknowledgments = []string{"okay, i understand", "i will analyze", "i can help", "let me analyze", "i'll provide"}

// ErrEmptyResponse is returned when the model answers with (almost) nothing.
var ErrEmptyResponse = errors.New("model returned an empty response")

// LLMAnalyzer asks a chat model for an analysis and parses the text reply.
type LLMAnalyzer struct {
	model   ChatModel
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMAnalyzer wires an OpenAI-compatible endpoint (Gemini's compat API by default).
func NewLLMAnalyzer(cfg config.AnalyzerConfig, logger *zap.Logger) (*LLMAnalyzer, error) {
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return NewLLMAnalyzerWithModel(model, cfg.Timeout(), logger), nil
}

// NewLLMAnalyzerWithModel builds an analyzer around an existing model.
func NewLLMAnalyzerWithModel(model ChatModel, timeout time.Duration, logger *zap.Logger) *LLMAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMAnalyzer{model: model, timeout: timeout, logger: logger}
}

// Analyze sends the prompt, retrying once with a blunter prompt when the model
// only acknowledges the request.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) (*domain.Analysis, error) {
	if strings.TrimSpace(req.Symptoms) == "" {
		return nil, errors.New("symptoms required")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	contextBlock := ""
	if len(req.Context) > 0 {
		contextBlock = "\nRelevant medical information from similar cases:\n" + strings.Join(req.Context, "\n") + "\n"
	}

	text, err := a.generate(ctx, fmt.Sprintf(analysisPrompt, req.Symptoms, contextBlock))
	if err != nil {
		return nil, err
	}
	if isAcknowledgment(text) {
		a.logger.Warn("model acknowledged instead of analyzing, retrying")
		text, err = a.generate(ctx, fmt.Sprintf(retryPrompt, req.Symptoms))
		if err != nil {
			return nil, err
		}
	}

	result := ParseAnalysis(text)
	a.logger.Debug("analysis parsed",
		zap.Int("conditions", len(result.Conditions)),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.String("severity", result.Severity),
	)
	return &result, nil
}

func (a *LLMAnalyzer) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("generate analysis: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := resp.Choices[0].Content
	if len(strings.TrimSpace(text)) < 10 {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func isAcknowledgment(text string) bool {
	if strings.Contains(strings.ToUpper(text), "CONDITIONS:") {
		return false
	}
	head := strings.ToLower(text)
	if len(head) > 200 {
		head = head[:200]
	}
	for _, phrase := range acknowledgments {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}
