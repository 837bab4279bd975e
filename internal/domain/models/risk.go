package models

// RiskLabel is the credibility bucket for a complaint text
type RiskLabel string

const (
	RiskLabelCredible    RiskLabel = "Credible"
	RiskLabelNeedsReview RiskLabel = "Needs Review"
	RiskLabelSuspicious  RiskLabel = "Suspicious"
)

// RiskAssessment is the heuristic credibility result for a complaint text
type RiskAssessment struct {
	RiskScore  float64   `json:"risk_score"`
	RiskLabel  RiskLabel `json:"risk_label"`
	RiskReason string    `json:"risk_reason"`
}

// Priority is the keyword-based urgency shown while the worker types
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "High Risk"
	PriorityMedium Priority = "Medium Risk"
	PriorityLow    Priority = "Low Risk"
)

// AssessmentPreview is the live feedback for a draft complaint
type AssessmentPreview struct {
	Risk     RiskAssessment `json:"risk"`
	Priority Priority       `json:"priority,omitempty"`
}
