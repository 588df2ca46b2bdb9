package dto

import (
	"time"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// SymptomRequest carries free-text symptoms.
type SymptomRequest struct {
	Symptoms string `json:"symptoms"`
}

// SymptomResponse is the analysis returned to the client.
type SymptomResponse struct {
	QueryID         string    `json:"query_id"`
	Symptoms        string    `json:"symptoms"`
	Conditions      []string  `json:"conditions"`
	Recommendations []string  `json:"recommendations"`
	Severity        string    `json:"severity"`
	Disclaimer      string    `json:"disclaimer"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewSymptomResponse maps a persisted record, echoing displaySymptoms.
func NewSymptomResponse(record *domain.HistoryRecord, displaySymptoms string) SymptomResponse {
	record.Normalize()
	return SymptomResponse{
		QueryID:         record.ID,
		Symptoms:        displaySymptoms,
		Conditions:      record.Conditions,
		Recommendations: record.Recommendations,
		Severity:        record.Severity,
		Disclaimer:      domain.Disclaimer,
		CreatedAt:       record.CreatedAt,
	}
}

// PDFUploadResponse reports an indexed document.
type PDFUploadResponse struct {
	Message         string `json:"message"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
	TotalTextLength int    `json:"total_text_length"`
}
