package domain

import "strings"

// Disclaimer accompanies every analysis returned to clients.
const Disclaimer = "This information is for educational purposes only and is not a substitute for professional medical advice, diagnosis, or treatment. Always consult with a qualified healthcare provider."

// Severity values the analyzer normally produces. The field stays an open
// string because upstream models may answer with anything.
const (
	SeverityMild        = "mild"
	SeverityModerate    = "moderate"
	SeveritySevere      = "severe"
	SeverityUnknown     = "Unknown"
	SeverityInformation = "Information"
)

// Analysis kinds name the endpoint that produced a history record.
const (
	KindText      = "text"
	KindImage     = "image"
	KindPDFUpload = "pdf_upload"
	KindDocuments = "documents"
)

// Analysis is the structured result of one symptom analysis.
type Analysis struct {
	Conditions      []string
	Recommendations []string
	Severity        string
}

// IsSevere matches by substring, so "moderately severe" counts.
func (a Analysis) IsSevere() bool {
	return strings.Contains(strings.ToLower(a.Severity), SeveritySevere)
}

// HasFindings reports whether both lists carry at least one entry.
func (a Analysis) HasFindings() bool {
	return len(a.Conditions) > 0 && len(a.Recommendations) > 0
}
