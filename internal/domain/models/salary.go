package models

// ReliabilityLevel grades an employer's payment record
type ReliabilityLevel string

const (
	ReliabilityReliable     ReliabilityLevel = "Reliable"
	ReliabilityModerateRisk ReliabilityLevel = "Moderate Risk"
	ReliabilityHighRisk     ReliabilityLevel = "High Risk"
)

// SalaryRecord is one month in the worker's salary ledger
type SalaryRecord struct {
	Month    string  `json:"month"`
	Expected float64 `json:"expected"`
	Received float64 `json:"received"`
	Employer string  `json:"employer,omitempty"`
}

// Pending returns the unpaid amount for the month. Overpayment shows as negative.
func (r SalaryRecord) Pending() float64 {
	return r.Expected - r.Received
}

// SalarySummary aggregates a ledger
type SalarySummary struct {
	Employer         string           `json:"employer,omitempty"`
	Months           int              `json:"months"`
	TotalExpected    float64          `json:"total_expected"`
	TotalReceived    float64          `json:"total_received"`
	TotalPending     float64          `json:"total_pending"`
	ReliabilityScore int              `json:"reliability_score"`
	ReliabilityLevel ReliabilityLevel `json:"reliability_level"`
}

// SalaryLedgerRequest is the body of the salary endpoints
type SalaryLedgerRequest struct {
	Employer string         `json:"employer"`
	Month    string         `json:"month,omitempty"`
	Records  []SalaryRecord `json:"records"`
}

// SalaryReminder is the generated reminder notice
type SalaryReminder struct {
	Summary   SalarySummary `json:"summary"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Statement string        `json:"statement"`
}
