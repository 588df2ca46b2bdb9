package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	casesCollection     = "symptom_cases"
	documentsCollection = "medical_documents"
)

// CaseMatch is a previously analysed case similar to a query.
type CaseMatch struct {
	Symptoms   string
	Conditions []string
	Similarity float32
}

// DocumentMatch is an uploaded document chunk relevant to a query.
type DocumentMatch struct {
	Text       string
	PDFName    string
	Similarity float32
}

// KnowledgeBase stores completed cases and uploaded document chunks for
// retrieval-augmented analysis.
type KnowledgeBase struct {
	cases     *chromem.Collection
	documents *chromem.Collection
	logger    *zap.Logger
}

// NewKnowledgeBase builds an in-process store using hashed embeddings.
func NewKnowledgeBase(logger *zap.Logger) (*KnowledgeBase, error) {
	return NewKnowledgeBaseWithEmbedding(chromem.EmbeddingFunc(HashEmbedding), logger)
}

// NewKnowledgeBaseWithEmbedding lets callers plug another embedding function.
func NewKnowledgeBaseWithEmbedding(embed chromem.EmbeddingFunc, logger *zap.Logger) (*KnowledgeBase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := chromem.NewDB()
	cases, err := db.GetOrCreateCollection(casesCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", casesCollection, err)
	}
	documents, err := db.GetOrCreateCollection(documentsCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", documentsCollection, err)
	}
	return &KnowledgeBase{cases: cases, documents: documents, logger: logger}, nil
}

// AddCase indexes a completed analysis under id.
func (kb *KnowledgeBase) AddCase(ctx context.Context, id, symptoms string, conditions, recommendations []string) error {
	if id == "" || strings.TrimSpace(symptoms) == "" {
		return errors.New("case id and symptoms required")
	}
	doc := chromem.Document{
		ID:      id,
		Content: symptoms,
		Metadata: map[string]string{
			"type":            "symptom_case",
			"conditions":      strings.Join(conditions, "\n"),
			"recommendations": strings.Join(recommendations, "\n"),
		},
	}
	if err := kb.cases.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("add case: %w", err)
	}
	return nil
}

// AddDocumentChunks indexes the chunks of one uploaded document and returns
// how many were stored.
func (kb *KnowledgeBase) AddDocumentChunks(ctx context.Context, pdfName string, chunks []string) (int, error) {
	docID := uuid.NewString()
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s_chunk_%d", docID, i),
			Content: chunk,
			Metadata: map[string]string{
				"type":        "pdf_chunk",
				"pdf_name":    pdfName,
				"chunk_index": strconv.Itoa(i),
			},
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := kb.documents.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("add document chunks: %w", err)
	}
	kb.logger.Info("indexed document", zap.String("pdf_name", pdfName), zap.Int("chunks", len(docs)))
	return len(docs), nil
}

// SimilarCases returns up to k cases closest to query.
func (kb *KnowledgeBase) SimilarCases(ctx context.Context, query string, k int) ([]CaseMatch, error) {
	results, err := queryCollection(ctx, kb.cases, query, k)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	matches := make([]CaseMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, CaseMatch{
			Symptoms:   r.Content,
			Conditions: splitLines(r.Metadata["conditions"]),
			Similarity: r.Similarity,
		})
	}
	return matches, nil
}

// SearchDocuments returns up to k document chunks closest to query.
func (kb *KnowledgeBase) SearchDocuments(ctx context.Context, query string, k int) ([]DocumentMatch, error) {
	results, err := queryCollection(ctx, kb.documents, query, k)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	matches := make([]DocumentMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, DocumentMatch{
			Text:       r.Content,
			PDFName:    r.Metadata["pdf_name"],
			Similarity: r.Similarity,
		})
	}
	return matches, nil
}

// CaseCount and DocumentCount report collection sizes.
func (kb *KnowledgeBase) CaseCount() int { return kb.cases.Count() }

func (kb *KnowledgeBase) DocumentCount() int { return kb.documents.Count() }

func queryCollection(ctx context.Context, collection *chromem.Collection, query string, k int) ([]chromem.Result, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	return collection.Query(ctx, query, k, nil, nil)
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
