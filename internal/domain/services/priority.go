package services

import (
	"strings"

	"beacon/internal/domain/models"
)

const summaryLength = 120

var (
	highPriorityKeywords   = []string{"hit", "violence", "threat", "bleeding", "danger"}
	mediumPriorityKeywords = []string{"delay", "overwork", "harass"}
)

// AssessPriority flags urgent wording while a complaint is being written.
// Descriptions of 20 characters or fewer with no keyword get no priority.
func AssessPriority(description string) models.Priority {
	text := strings.ToLower(description)

	if containsAny(text, highPriorityKeywords) {
		return models.PriorityHigh
	}
	if containsAny(text, mediumPriorityKeywords) {
		return models.PriorityMedium
	}
	if textLength(description) > 20 {
		return models.PriorityLow
	}
	return models.PriorityNone
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var draftTemplates = map[models.Category]string{
	models.CategorySalaryDelay: `I have not received my salary for [Month/Duration].

Employer Name:
Amount Due:
How long delayed:
Impact on me:`,
	models.CategoryHarassment: `On [Date], I experienced harassment at my workplace.

Person involved:
What happened:
Any witnesses:
Impact on me:`,
	models.CategoryThreatOrViolence: `I was threatened or physically harmed at work.

Who was involved:
What happened:
Is there immediate danger:
Additional details:`,
	models.CategoryUnsafeConditions: `There are unsafe working conditions.

Type of hazard:
Since when:
Has anyone been injured:
Why it is dangerous:`,
	models.CategoryWorkplaceAbuse: `I am facing abuse at my workplace.

Type of abuse:
Who is responsible:
How frequently:
Impact on me:`,
}

const defaultDraftTemplate = `On [Date], at [Workplace Location], I experienced the following issue:

What happened:
Who was involved:
Impact on me:`

// DraftTemplate returns the fill-in-the-blanks text for a category
func DraftTemplate(category models.Category) string {
	if t, ok := draftTemplates[category]; ok {
		return t
	}
	return defaultDraftTemplate
}

var summaryPrefixes = map[models.Category]string{
	models.CategorySalaryDelay:      "Salary Delay Case: ",
	models.CategoryHarassment:       "Harassment Complaint: ",
	models.CategoryThreatOrViolence: "URGENT Violence Report: ",
	models.CategoryUnsafeConditions: "Unsafe Workplace Condition: ",
}

// Summarize shortens a description to a one-line case summary. Empty
// descriptions are returned unchanged.
func Summarize(category models.Category, description string) string {
	if description == "" {
		return ""
	}

	prefix, ok := summaryPrefixes[category]
	if !ok {
		prefix = "Workplace Issue: "
	}

	short, cut := truncateText(description, summaryLength)
	if cut {
		short += "..."
	}
	return prefix + short
}
