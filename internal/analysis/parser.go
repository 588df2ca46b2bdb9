package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

const maxItems = 5

const (
	fallbackCondition      = "Consult a healthcare professional for proper diagnosis"
	fallbackRecommendation = "Seek professional medical advice from a qualified healthcare provider"
)

var (
	numberedItem = regexp.MustCompile(`^\d+[.)]\s+`)
	bulletItem   = regexp.MustCompile(`^[-•*]\s+`)

	conditionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:possible|likely|probable|potential)\s+(?:condition|diagnosis|disease|illness)s?[:\s]+([^.\n]+)`),
		regexp.MustCompile(`(?i)(?:could be|might be|may be)\s+([A-Z][^.\n]+)`),
	}
	recommendationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:recommend|suggest|advise|should|next step)s?[:\s]+([^.\n]+)`),
		regexp.MustCompile(`(?i)(?:see|consult|visit|contact)\s+([^.\n]+)`),
	}
)

type section int

const (
	sectionNone section = iota
	sectionConditions
	sectionRecommendations
)

// ParseAnalysis reads a CONDITIONS / RECOMMENDATIONS / SEVERITY reply. Item
// order is preserved, each list holds at most five entries and is never empty.
// Severity defaults to moderate when the reply does not state one.
func ParseAnalysis(text string) domain.Analysis {
	var conditions, recommendations []string
	severity := domain.SeverityModerate
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		marked := numberedItem.MatchString(line) || bulletItem.MatchString(line)
		switch {
		case marked:
		case strings.Contains(lower, "condition") && (strings.Contains(line, ":") || strings.HasPrefix(lower, "condition")):
			current = sectionConditions
			continue
		case (strings.Contains(lower, "recommendation") || strings.Contains(lower, "next step")) &&
			(strings.Contains(line, ":") || strings.HasPrefix(lower, "recommendation")):
			current = sectionRecommendations
			continue
		case strings.Contains(lower, "severity"):
			severity = severityFrom(lower, severity)
			continue
		}

		item, ok := listItem(line)
		if !ok {
			continue
		}
		switch current {
		case sectionConditions:
			if len(conditions) < maxItems {
				conditions = append(conditions, item)
			}
		case sectionRecommendations:
			if len(recommendations) < maxItems {
				recommendations = append(recommendations, item)
			}
		}
	}

	if len(conditions) == 0 {
		conditions = matchAll(conditionPatterns, text)
	}
	if len(recommendations) == 0 {
		recommendations = matchAll(recommendationPatterns, text)
	}
	if len(conditions) == 0 {
		conditions = []string{fallbackCondition}
	}
	if len(recommendations) == 0 {
		recommendations = []string{fallbackRecommendation}
	}

	return domain.Analysis{
		Conditions:      conditions,
		Recommendations: recommendations,
		Severity:        severity,
	}
}

// severityFrom checks mild before severe so "mild to severe" reads as mild.
func severityFrom(lower, current string) string {
	switch {
	case strings.Contains(lower, domain.SeverityMild):
		return domain.SeverityMild
	case strings.Contains(lower, domain.SeveritySevere):
		return domain.SeveritySevere
	case strings.Contains(lower, domain.SeverityModerate):
		return domain.SeverityModerate
	}
	return current
}

func listItem(line string) (string, bool) {
	var content string
	switch {
	case numberedItem.MatchString(line):
		content = strings.TrimSpace(numberedItem.ReplaceAllString(line, ""))
	case bulletItem.MatchString(line):
		content = strings.TrimSpace(bulletItem.ReplaceAllString(line, ""))
	default:
		// Plain prose lines count when they read like a sentence.
		if len(line) <= 10 || strings.ToUpper(line) == line {
			return "", false
		}
		if !unicode.IsUpper([]rune(line)[0]) {
			return "", false
		}
		return line, true
	}
	return content, len(content) > 5
}

func matchAll(patterns []*regexp.Regexp, text string) []string {
	var out []string
	for _, pattern := range patterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if len(candidate) > 5 && len(out) < maxItems {
				out = append(out, candidate)
			}
		}
	}
	return out
}
