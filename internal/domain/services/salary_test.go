package services

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/domain/models"
)

func sampleLedger() []models.SalaryRecord {
	return []models.SalaryRecord{
		{Month: "Sep", Expected: 15000, Received: 15000, Employer: "ABC Corp"},
		{Month: "Oct", Expected: 15000, Received: 12000, Employer: "ABC Corp"},
		{Month: "Nov", Expected: 15000, Received: 8000, Employer: "ABC Corp"},
		{Month: "Dec", Expected: 15000, Received: 0, Employer: "ABC Corp"},
		{Month: "Jan", Expected: 15000, Received: 0, Employer: "ABC Corp"},
		{Month: "Feb", Expected: 15000, Received: 5000, Employer: "ABC Corp"},
	}
}

func newTestTracker() *SalaryTracker {
	return NewSalaryTracker("", func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	})
}

func TestSalaryTracker_Summarize(t *testing.T) {
	sum := newTestTracker().Summarize("", sampleLedger())

	assert.Equal(t, "ABC Corp", sum.Employer)
	assert.Equal(t, 6, sum.Months)
	assert.Equal(t, 90000.0, sum.TotalExpected)
	assert.Equal(t, 40000.0, sum.TotalReceived)
	assert.Equal(t, 50000.0, sum.TotalPending)
	assert.Equal(t, 44, sum.ReliabilityScore)
	assert.Equal(t, models.ReliabilityHighRisk, sum.ReliabilityLevel)
}

func TestReliability(t *testing.T) {
	tests := []struct {
		expected, received float64
		score              int
		level              models.ReliabilityLevel
	}{
		{0, 0, 0, models.ReliabilityHighRisk},
		{100, 100, 100, models.ReliabilityReliable},
		{100, 86, 86, models.ReliabilityReliable},
		{100, 85, 85, models.ReliabilityModerateRisk},
		{100, 61, 61, models.ReliabilityModerateRisk},
		{100, 60, 60, models.ReliabilityHighRisk},
		{8, 5, 63, models.ReliabilityModerateRisk}, // 62.5 rounds up
	}

	for _, tt := range tests {
		score := ReliabilityScore(tt.expected, tt.received)
		assert.Equal(t, tt.score, score)
		assert.Equal(t, tt.level, ReliabilityLevelFor(score))
	}
}

func TestSalaryTracker_Reminder(t *testing.T) {
	rem, err := newTestTracker().Reminder(&models.SalaryLedgerRequest{Records: sampleLedger()})
	require.NoError(t, err)

	assert.Equal(t, "Salary Payment Reminder", rem.Subject)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "salary_reminder_body", []byte(rem.Body))
	g.Assert(t, "salary_statement", []byte(rem.Statement))
}

func TestSalaryTracker_ReminderValidation(t *testing.T) {
	tracker := newTestTracker()

	_, err := tracker.Reminder(&models.SalaryLedgerRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = tracker.Reminder(&models.SalaryLedgerRequest{
		Records: []models.SalaryRecord{{Month: "Jan", Expected: 100, Received: 50}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "employer", verr.Fields[0].Field)

	_, err = tracker.Reminder(&models.SalaryLedgerRequest{
		Employer: "XYZ Builders",
		Records:  []models.SalaryRecord{{Month: "Jan", Expected: -1}},
	})
	assert.ErrorIs(t, err, ErrValidation)
}
