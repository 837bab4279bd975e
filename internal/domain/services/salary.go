package services

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"beacon/internal/domain/models"
)

// SalaryTracker grades employer payment records and drafts reminders
type SalaryTracker struct {
	signature string
	now       func() time.Time
}

// NewSalaryTracker creates a new SalaryTracker. signature closes the
// reminder letter.
func NewSalaryTracker(signature string, now func() time.Time) *SalaryTracker {
	if signature == "" {
		signature = "Employee"
	}
	if now == nil {
		now = time.Now
	}
	return &SalaryTracker{signature: signature, now: now}
}

// Summarize totals a ledger and scores the employer's reliability
func (t *SalaryTracker) Summarize(employer string, records []models.SalaryRecord) models.SalarySummary {
	sum := models.SalarySummary{
		Employer: employerOf(employer, records),
		Months:   len(records),
	}
	for _, r := range records {
		sum.TotalExpected += r.Expected
		sum.TotalReceived += r.Received
	}
	sum.TotalPending = sum.TotalExpected - sum.TotalReceived
	sum.ReliabilityScore = ReliabilityScore(sum.TotalExpected, sum.TotalReceived)
	sum.ReliabilityLevel = ReliabilityLevelFor(sum.ReliabilityScore)
	return sum
}

// ReliabilityScore is the received share of expected pay in whole percent
func ReliabilityScore(expected, received float64) int {
	if expected == 0 {
		return 0
	}
	return int(math.Floor(received/expected*100 + 0.5))
}

// ReliabilityLevelFor buckets a reliability score
func ReliabilityLevelFor(score int) models.ReliabilityLevel {
	switch {
	case score > 85:
		return models.ReliabilityReliable
	case score > 60:
		return models.ReliabilityModerateRisk
	default:
		return models.ReliabilityHighRisk
	}
}

// ValidateLedger checks a ledger request before any notice is drafted
func (t *SalaryTracker) ValidateLedger(req *models.SalaryLedgerRequest, needEmployer bool) error {
	verr := &ValidationError{}
	if len(req.Records) == 0 {
		verr.Add("records", "at least one month is required")
	}
	for i, r := range req.Records {
		if r.Expected < 0 || r.Received < 0 {
			verr.Add(fmt.Sprintf("records[%d]", i), "amounts cannot be negative")
		}
	}
	if needEmployer && employerOf(req.Employer, req.Records) == "" {
		verr.Add("employer", "employer is required")
	}
	return verr.OrNil()
}

// Reminder drafts the formal payment reminder letter and the statement
// that accompanies it
func (t *SalaryTracker) Reminder(req *models.SalaryLedgerRequest) (*models.SalaryReminder, error) {
	if err := t.ValidateLedger(req, true); err != nil {
		return nil, err
	}

	summary := t.Summarize(req.Employer, req.Records)
	month := req.Month
	if month == "" {
		month = t.now().Format("January 2006")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", summary.Employer)
	fmt.Fprintf(&body, "For %s:\n\n", month)
	fmt.Fprintf(&body, "Expected Salary: %s\n", rupees(summary.TotalExpected))
	fmt.Fprintf(&body, "Received Salary: %s\n", rupees(summary.TotalReceived))
	fmt.Fprintf(&body, "Pending Amount: %s\n\n", rupees(summary.TotalPending))
	fmt.Fprintf(&body, "Reliability Score: %d%% (%s)\n\n", summary.ReliabilityScore, summary.ReliabilityLevel)
	body.WriteString("This is a formal reminder to clear the outstanding dues immediately.\n\n")
	fmt.Fprintf(&body, "Regards,\n%s\n", t.signature)

	return &models.SalaryReminder{
		Summary:   summary,
		Subject:   "Salary Payment Reminder",
		Body:      body.String(),
		Statement: t.statement(summary, req.Records),
	}, nil
}

// statement renders the month-by-month table printed with the notice
func (t *SalaryTracker) statement(summary models.SalarySummary, records []models.SalaryRecord) string {
	var buf bytes.Buffer
	buf.WriteString("Salary Legal Notice Report\n\n")
	fmt.Fprintf(&buf, "Employer: %s\n", summary.Employer)
	fmt.Fprintf(&buf, "Generated: %s\n\n", t.now().Format("Mon Jan 02 2006"))
	fmt.Fprintf(&buf, "Total Expected: %s\n", rupees(summary.TotalExpected))
	fmt.Fprintf(&buf, "Total Received: %s\n", rupees(summary.TotalReceived))
	fmt.Fprintf(&buf, "Pending Amount: %s\n", rupees(summary.TotalPending))
	fmt.Fprintf(&buf, "Reliability Score: %d%% (%s)\n\n", summary.ReliabilityScore, summary.ReliabilityLevel)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Month\tExpected\tReceived\tPending")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Month, rupees(r.Expected), rupees(r.Received), rupees(r.Pending()))
	}
	tw.Flush()

	return buf.String()
}

func employerOf(employer string, records []models.SalaryRecord) string {
	if e := strings.TrimSpace(employer); e != "" {
		return e
	}
	if len(records) > 0 {
		return strings.TrimSpace(records[0].Employer)
	}
	return ""
}

func rupees(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}
