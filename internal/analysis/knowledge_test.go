package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedding_UnitLengthAndDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := HashEmbedding(ctx, "fever and cough")
	require.NoError(t, err)
	b, err := HashEmbedding(ctx, "Fever, and COUGH!")
	require.NoError(t, err)

	assert.Len(t, a, EmbeddingDimension)
	assert.Equal(t, a, b)

	var norm float32
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-4)

	empty, err := HashEmbedding(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, float32(1), empty[0])
}

func TestKnowledgeBase_SimilarCases(t *testing.T) {
	kb, err := NewKnowledgeBase(nil)
	require.NoError(t, err)
	ctx := context.Background()

	cases, err := kb.SimilarCases(ctx, "fever", 3)
	require.NoError(t, err)
	assert.Empty(t, cases, "empty collection yields no matches")

	require.NoError(t, kb.AddCase(ctx, "c1", "high fever and dry cough", []string{"Influenza", "COVID-19"}, []string{"Rest"}))
	require.NoError(t, kb.AddCase(ctx, "c2", "itchy rash on forearm", []string{"Contact dermatitis"}, []string{"Avoid irritants"}))

	cases, err = kb.SimilarCases(ctx, "fever and cough", 5)
	require.NoError(t, err)
	require.Len(t, cases, 2, "k is capped at collection size")
	assert.Equal(t, "high fever and dry cough", cases[0].Symptoms)
	assert.Equal(t, []string{"Influenza", "COVID-19"}, cases[0].Conditions)
	assert.Equal(t, 2, kb.CaseCount())

	assert.Error(t, kb.AddCase(ctx, "", "x", nil, nil))
}

func TestKnowledgeBase_Documents(t *testing.T) {
	kb, err := NewKnowledgeBase(nil)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := kb.AddDocumentChunks(ctx, "labs.pdf", []string{"hemoglobin is low indicating anemia", "  ", "cholesterol within range"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, kb.DocumentCount())

	docs, err := kb.SearchDocuments(ctx, "anemia hemoglobin", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "labs.pdf", docs[0].PDFName)
	assert.Contains(t, docs[0].Text, "anemia")

	docs, err = kb.SearchDocuments(ctx, "", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
