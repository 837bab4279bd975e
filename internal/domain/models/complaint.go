package models

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Category is the complaint category chosen on the report screen
type Category string

const (
	CategorySalaryDelay          Category = "Salary Delay"
	CategoryWorkplaceAbuse       Category = "Workplace Abuse"
	CategoryHarassment           Category = "Harassment"
	CategoryUnsafeConditions     Category = "Unsafe Conditions"
	CategoryOvertimeExploitation Category = "Overtime Exploitation"
	CategoryHealthHazard         Category = "Health Hazard"
	CategoryDiscrimination       Category = "Discrimination"
	CategoryChildLabour          Category = "Child Labour"
	CategoryThreatOrViolence     Category = "Threat or Violence"
	CategoryOther                Category = "Other"

	// CategoryVoice is sent by the voice complaint screen.
	CategoryVoice Category = "Voice Complaint"
)

// Categories lists the fixed categories in display order.
var Categories = []Category{
	CategorySalaryDelay,
	CategoryWorkplaceAbuse,
	CategoryHarassment,
	CategoryUnsafeConditions,
	CategoryOvertimeExploitation,
	CategoryHealthHazard,
	CategoryDiscrimination,
	CategoryChildLabour,
	CategoryThreatOrViolence,
	CategoryOther,
}

// ComplaintStatus tracks a complaint through review
type ComplaintStatus string

const (
	ComplaintStatusNew         ComplaintStatus = "new"
	ComplaintStatusNeedsReview ComplaintStatus = "needs_review"
	ComplaintStatusInProgress  ComplaintStatus = "in_progress"
	ComplaintStatusResolved    ComplaintStatus = "resolved"
)

// Complaint is a stored worker complaint
type Complaint struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CaseID      string          `json:"case_id" db:"case_id"`
	Category    Category        `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	Location    string          `json:"location" db:"location"`
	Latitude    *float64        `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64        `json:"longitude,omitempty" db:"longitude"`
	Anonymous   bool            `json:"anonymous" db:"anonymous"`
	ReporterID  string          `json:"reporter_id,omitempty" db:"reporter_id"` // empty when anonymous
	Language    string          `json:"language" db:"language"`
	Evidence    []EvidenceFile  `json:"files" db:"files"`
	Status      ComplaintStatus `json:"status" db:"status"`

	// Server-side assessment
	RiskScore  float64   `json:"risk_score" db:"risk_score"`
	RiskLabel  RiskLabel `json:"risk_label" db:"risk_label"`
	RiskReason string    `json:"risk_reason" db:"risk_reason"`
	Priority   Priority  `json:"priority,omitempty" db:"priority"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasCoordinates reports whether the location parsed as a coordinate pair
func (c *Complaint) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// EvidenceFile describes one stored evidence upload
type EvidenceFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size"`
}

// EvidenceUpload is an evidence file as received from the client
type EvidenceUpload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// ComplaintSubmission is the raw report form
type ComplaintSubmission struct {
	Category       Category
	CustomCategory string
	Description    string
	Location       string
	Anonymous      bool

	// ClientRisk is whatever the client computed; it is never stored.
	ClientRisk *RiskAssessment

	Evidence []EvidenceUpload
}

// SubmissionResult is returned to the client after a successful submit
type SubmissionResult struct {
	Success bool           `json:"success"`
	CaseID  string         `json:"caseId"`
	Message string         `json:"message"`
	Risk    RiskAssessment `json:"risk"`
}

// ComplaintFilter narrows complaint listings
type ComplaintFilter struct {
	Category Category        `json:"category,omitempty"`
	Status   ComplaintStatus `json:"status,omitempty"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// ComplaintListResponse is a page of complaints
type ComplaintListResponse struct {
	Complaints []Complaint `json:"complaints"`
	Total      int64       `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}
