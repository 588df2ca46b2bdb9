package dto

import (
	"time"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// HistoryRecordResponse is one entry of a user's symptom history.
type HistoryRecordResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Symptoms        string    `json:"symptoms"`
	Severity        string    `json:"severity"`
	Conditions      []string  `json:"conditions"`
	Recommendations []string  `json:"recommendations"`
	ImageAnalysis   *string   `json:"image_analysis"`
	ImageFilename   *string   `json:"image_filename"`
	PDFName         *string   `json:"pdf_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewHistoryRecordResponse maps a domain record. Finding lists are always
// arrays on the wire, never null.
func NewHistoryRecordResponse(record domain.HistoryRecord) HistoryRecordResponse {
	record.Normalize()
	return HistoryRecordResponse{
		ID:              record.ID,
		UserID:          record.UserID,
		Symptoms:        record.SymptomsText,
		Severity:        record.Severity,
		Conditions:      record.Conditions,
		Recommendations: record.Recommendations,
		ImageAnalysis:   record.AnalysisNote,
		ImageFilename:   record.ImageFilename,
		PDFName:         record.PDFName,
		CreatedAt:       record.CreatedAt,
	}
}

// NewHistoryResponse maps records preserving their order.
func NewHistoryResponse(records []domain.HistoryRecord) []HistoryRecordResponse {
	out := make([]HistoryRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, NewHistoryRecordResponse(record))
	}
	return out
}
