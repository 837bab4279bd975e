package services

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf16"

	"beacon/internal/domain/models"
)

const (
	shortComplaintLength = 30
	maxLinkMentions      = 2

	reasonTooShort   = "Too short complaint"
	reasonRandom     = "Looks like random characters"
	reasonRepetitive = "Repetitive content"
	reasonLinks      = "Too many links"
	reasonGenuine    = "Looks genuine"
)

var randomCharsPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*()]+$`)

// RiskScorer grades how credible a complaint text looks. It holds no state
// and is safe for concurrent use.
type RiskScorer struct{}

// NewRiskScorer creates a new RiskScorer
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Score runs every heuristic against text. Contributions add up without a
// cap, so a text that trips everything scores 1.2.
func (s *RiskScorer) Score(text string) models.RiskAssessment {
	var score float64
	var reasons []string

	if textLength(text) < shortComplaintLength {
		score += 0.4
		reasons = append(reasons, reasonTooShort)
	}

	if randomCharsPattern.MatchString(text) {
		score += 0.3
		reasons = append(reasons, reasonRandom)
	}

	words := strings.Split(text, " ")
	distinct := make(map[string]struct{}, len(words))
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	if float64(len(distinct)) < float64(len(words))/2 {
		score += 0.2
		reasons = append(reasons, reasonRepetitive)
	}

	if strings.Count(text, "http") > maxLinkMentions {
		score += 0.3
		reasons = append(reasons, reasonLinks)
	}

	// Label off the rounded value: 0.4+0.3 must land on 0.7, not above it.
	score = roundTo(score, 2)

	reason := reasonGenuine
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}

	return models.RiskAssessment{
		RiskScore:  score,
		RiskLabel:  labelFor(score),
		RiskReason: reason,
	}
}

func labelFor(score float64) models.RiskLabel {
	switch {
	case score > 0.7:
		return models.RiskLabelSuspicious
	case score > 0.3:
		return models.RiskLabelNeedsReview
	default:
		return models.RiskLabelCredible
	}
}

// textLength counts UTF-16 code units, the unit the mobile client measures in.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncateText cuts s to at most n UTF-16 code units without splitting a rune.
func truncateText(s string, n int) (string, bool) {
	units := 0
	for i, r := range s {
		units += utf16.RuneLen(r)
		if units > n {
			return s[:i], true
		}
	}
	return s, false
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
