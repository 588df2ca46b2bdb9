package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/observability"
)

// RateLimiter throttles analysis requests per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// AnalysisResult pairs the persisted record with the text echoed to the client.
type AnalysisResult struct {
	Record   *domain.HistoryRecord
	Symptoms string
}

// PDFUploadResult summarises an indexed document.
type PDFUploadResult struct {
	Filename        string
	ChunksProcessed int
	TextLength      int
}

// SymptomService runs analyses and records them in the caller's history.
type SymptomService struct {
	analyzer  analysis.Analyzer
	knowledge *analysis.KnowledgeBase
	history   *HistoryService
	limiter   RateLimiter
	metrics   *observability.Metrics
	caseTopK  int
	docTopK   int
	logger    *zap.Logger
}

// SymptomDependencies bundles collaborators. Analyzer and Knowledge may be nil.
type SymptomDependencies struct {
	Analyzer  analysis.Analyzer
	Knowledge *analysis.KnowledgeBase
	History   *HistoryService
	Limiter   RateLimiter
	Metrics   *observability.Metrics
}

// NewSymptomService builds the service.
func NewSymptomService(cfg config.AnalyzerConfig, deps SymptomDependencies, logger *zap.Logger) *SymptomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SymptomService{
		analyzer:  deps.Analyzer,
		knowledge: deps.Knowledge,
		history:   deps.History,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		caseTopK:  cfg.CaseTopK,
		docTopK:   cfg.DocumentTopK,
		logger:    logger,
	}
}

// AnalyzeText analyses free-text symptoms, using similar past cases as context.
func (s *SymptomService) AnalyzeText(ctx context.Context, user *domain.User, symptoms string) (*AnalysisResult, error) {
	symptoms = strings.TrimSpace(symptoms)
	if err := requireSymptoms(symptoms); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, user); err != nil {
		return nil, err
	}

	result, err := s.analyze(ctx, domain.KindText, analysis.Request{
		Symptoms: symptoms,
		Context:  s.caseContext(ctx, symptoms),
	})
	if err != nil {
		return nil, err
	}
	record, err := s.history.RecordForUser(ctx, user, RecordInput{
		Kind:            domain.KindText,
		SymptomsText:    symptoms,
		Severity:        result.Severity,
		Conditions:      result.Conditions,
		Recommendations: result.Recommendations,
	})
	if err != nil {
		return nil, err
	}
	return &AnalysisResult{Record: record, Symptoms: symptoms}, nil
}

// AnalyzeImage validates an uploaded image and analyses the accompanying
// description. The image content itself is not sent to the model.
func (s *SymptomService) AnalyzeImage(ctx context.Context, user *domain.User, filename string, data []byte, symptoms string) (*AnalysisResult, error) {
	symptoms = strings.TrimSpace(symptoms)
	filename = filepath.Base(strings.TrimSpace(filename))
	if err := validateImage(data); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, user); err != nil {
		return nil, err
	}

	prompt := "Analyze this medical image and provide possible conditions and recommendations."
	if symptoms != "" {
		prompt += "\n\nUser also provided this description: " + symptoms
	}
	lookup := symptoms
	if lookup == "" {
		lookup = "Medical image analysis requested"
	}

	result, err := s.analyze(ctx, domain.KindImage, analysis.Request{
		Symptoms: "Image analysis: " + prompt,
		Context:  s.caseContext(ctx, lookup),
	})
	if err != nil {
		return nil, err
	}

	stored := symptoms
	if stored == "" {
		stored = "Image analysis of " + filename
	}
	note := "Analyzed image: " + filename
	record, err := s.history.RecordForUser(ctx, user, RecordInput{
		Kind:            domain.KindImage,
		SymptomsText:    stored,
		Severity:        result.Severity,
		Conditions:      result.Conditions,
		Recommendations: result.Recommendations,
		AnalysisNote:    &note,
		ImageFilename:   &filename,
	})
	if err != nil {
		return nil, err
	}

	display := "Image: " + filename
	if symptoms != "" {
		display += " - " + symptoms
	}
	return &AnalysisResult{Record: record, Symptoms: display}, nil
}

// UploadPDF extracts, chunks and indexes a document, then notes the upload in
// the caller's history.
func (s *SymptomService) UploadPDF(ctx context.Context, user *domain.User, filename string, data []byte) (*PDFUploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	verr := domain.NewValidationError()
	switch {
	case filename == "" || filename == ".":
		verr.Add("pdf", "no file provided")
	case !strings.EqualFold(filepath.Ext(filename), ".pdf"):
		verr.Add("pdf", "file must be a PDF")
	case len(data) == 0:
		verr.Add("pdf", "file is empty")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if s.knowledge == nil {
		return nil, fmt.Errorf("%w: knowledge base not configured", domain.ErrAnalysisUnavailable)
	}
	if err := s.allow(ctx, user); err != nil {
		return nil, err
	}

	text, err := analysis.ExtractPDFText(data)
	if err != nil {
		verr := domain.NewValidationError()
		if errors.Is(err, analysis.ErrNoText) {
			verr.Add("pdf", "contains no extractable text; scanned documents are not supported")
		} else {
			verr.Add("pdf", "could not be read")
		}
		s.logger.Info("pdf rejected", zap.String("filename", filename), zap.Error(err))
		return nil, verr
	}

	chunks := analysis.ChunkText(text, analysis.DefaultChunkSize, analysis.DefaultChunkOverlap)
	stored, err := s.knowledge.AddDocumentChunks(ctx, filename, chunks)
	if err != nil {
		return nil, err
	}

	if _, err := s.history.RecordForUser(ctx, user, RecordInput{
		Kind:            domain.KindPDFUpload,
		SymptomsText:    "Uploaded medical document: " + filename,
		Severity:        domain.SeverityInformation,
		Conditions:      []string{fmt.Sprintf("Processed %d text chunks", stored)},
		Recommendations: []string{"PDF content is now available for symptom analysis"},
		PDFName:         &filename,
	}); err != nil {
		return nil, err
	}
	s.metrics.RecordAnalysis(domain.KindPDFUpload, "ok")

	return &PDFUploadResult{
		Filename:        filename,
		ChunksProcessed: stored,
		TextLength:      len([]rune(text)),
	}, nil
}

// AnalyzeWithDocuments analyses symptoms with uploaded document chunks and
// similar cases as context.
func (s *SymptomService) AnalyzeWithDocuments(ctx context.Context, user *domain.User, symptoms string) (*AnalysisResult, error) {
	symptoms = strings.TrimSpace(symptoms)
	if err := requireSymptoms(symptoms); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, user); err != nil {
		return nil, err
	}

	var contextLines []string
	if docs := s.documentContext(ctx, symptoms); len(docs) > 0 {
		contextLines = append(contextLines, "Relevant information from medical documents:")
		contextLines = append(contextLines, docs...)
	}
	if cases := s.caseContext(ctx, symptoms); len(cases) > 0 {
		contextLines = append(contextLines, "", "Similar cases:")
		contextLines = append(contextLines, cases...)
	}

	result, err := s.analyze(ctx, domain.KindDocuments, analysis.Request{Symptoms: symptoms, Context: contextLines})
	if err != nil {
		return nil, err
	}
	note := "Enhanced with PDF content from knowledge base"
	record, err := s.history.RecordForUser(ctx, user, RecordInput{
		Kind:            domain.KindDocuments,
		SymptomsText:    symptoms,
		Severity:        result.Severity,
		Conditions:      result.Conditions,
		Recommendations: result.Recommendations,
		AnalysisNote:    &note,
	})
	if err != nil {
		return nil, err
	}
	return &AnalysisResult{Record: record, Symptoms: symptoms}, nil
}

func (s *SymptomService) analyze(ctx context.Context, kind string, req analysis.Request) (*domain.Analysis, error) {
	if s.analyzer == nil {
		s.metrics.RecordAnalysis(kind, "disabled")
		return nil, fmt.Errorf("%w: analyzer not configured", domain.ErrAnalysisUnavailable)
	}
	result, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		s.metrics.RecordAnalysis(kind, "error")
		s.logger.Warn("analysis failed", zap.String("kind", kind), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalysisUnavailable, err)
	}
	s.metrics.RecordAnalysis(kind, "ok")
	return result, nil
}

func (s *SymptomService) allow(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrUnauthenticated
	}
	if s.limiter == nil {
		return nil
	}
	ok, wait, err := s.limiter.Allow(ctx, "analyze:"+user.ID)
	if err != nil {
		s.logger.Warn("rate limiter error", zap.Error(err))
	}
	if !ok {
		return fmt.Errorf("%w: retry in %s", domain.ErrRateLimited, wait.Round(time.Second))
	}
	return nil
}

func (s *SymptomService) caseContext(ctx context.Context, query string) []string {
	if s.knowledge == nil {
		return nil
	}
	matches, err := s.knowledge.SimilarCases(ctx, query, s.caseTopK)
	if err != nil {
		s.logger.Warn("similar case lookup failed", zap.Error(err))
		return nil
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("- Similar case: %s - Conditions: %s", m.Symptoms, strings.Join(m.Conditions, ", ")))
	}
	return lines
}

func (s *SymptomService) documentContext(ctx context.Context, query string) []string {
	if s.knowledge == nil {
		return nil
	}
	matches, err := s.knowledge.SearchDocuments(ctx, query, s.docTopK)
	if err != nil {
		s.logger.Warn("document lookup failed", zap.Error(err))
		return nil
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("- %s (from %s)", m.Text, m.PDFName))
	}
	return lines
}

func requireSymptoms(symptoms string) error {
	if strings.TrimSpace(symptoms) == "" {
		verr := domain.NewValidationError()
		verr.Add("symptoms", "is required")
		return verr
	}
	return nil
}

func validateImage(data []byte) error {
	verr := domain.NewValidationError()
	if len(data) == 0 {
		verr.Add("image", "file is empty")
		return verr
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		verr.Add("image", "invalid image file")
		return verr
	}
	return nil
}
