package domain

import "time"

// HistoryRecord is one persisted analysis outcome owned by exactly one user.
// Conditions are ordered most-likely first and Recommendations priority first.
type HistoryRecord struct {
	ID              string
	UserID          string
	SymptomsText    string
	Severity        string
	Conditions      []string
	Recommendations []string
	AnalysisNote    *string
	ImageFilename   *string
	PDFName         *string
	CreatedAt       time.Time
}

// Normalize replaces nil finding slices with empty ones so "no findings" is
// distinguishable from a missing field on the wire.
func (r *HistoryRecord) Normalize() {
	if r.Conditions == nil {
		r.Conditions = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}
