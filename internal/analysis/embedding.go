package analysis

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// EmbeddingDimension is the width of the hashed vectors.
const EmbeddingDimension = 384

// HashEmbedding maps text to a unit vector by feature hashing its word
// unigrams and bigrams. It needs no model or network and is deterministic, so
// similar symptom descriptions land near each other without an external service.
func HashEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, EmbeddingDimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok, 1)
		if i > 0 {
			addFeature(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()
	idx := sum % EmbeddingDimension
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
