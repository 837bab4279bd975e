package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beacon/internal/domain/models"
	"beacon/internal/infrastructure/database/repository"
	"beacon/internal/infrastructure/storage"
	"beacon/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestComplaintService(repo *MockComplaintRepository, store *MockEvidenceStore, opts ...ComplaintServiceOption) *ComplaintService {
	opts = append([]ComplaintServiceOption{
		WithCaseIDGenerator(func() string { return "CASE-12345" }),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewComplaintService(repo, store, NewRiskScorer(), DefaultSubmissionLimits(), logger.NewNop(), opts...)
}

func validSubmission() *models.ComplaintSubmission {
	return &models.ComplaintSubmission{
		Category:    models.CategorySalaryDelay,
		Description: "My employer has not paid my salary for three months and threatens to fire me if I complain.",
		Location:    "Surat, Gujarat",
		Anonymous:   true,
	}
}

var session = models.Session{AnonID: "anon-42", Language: models.LanguageEnglish}

func TestComplaintService_SubmitStoresServerRisk(t *testing.T) {
	repo := new(MockComplaintRepository)
	store := new(MockEvidenceStore)
	pub := new(MockPublisher)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return c.CaseID == "CASE-12345" &&
			c.RiskLabel == models.RiskLabelCredible &&
			c.RiskReason == "Looks genuine" &&
			c.ReporterID == "" &&
			c.Status == models.ComplaintStatusNew &&
			c.Priority == models.PriorityHigh &&
			c.CreatedAt.Equal(fixedNow)
	})).Return(nil).Once()
	pub.On("PublishComplaint", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newTestComplaintService(repo, store, WithPublisher(pub))

	sub := validSubmission()
	// a tampered client assessment must be ignored
	sub.ClientRisk = &models.RiskAssessment{RiskScore: 1.2, RiskLabel: models.RiskLabelSuspicious, RiskReason: "x"}

	res, err := svc.Submit(context.Background(), session, sub)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "CASE-12345", res.CaseID)
	assert.Equal(t, "Saved", res.Message)
	assert.Equal(t, models.RiskAssessment{RiskScore: 0, RiskLabel: models.RiskLabelCredible, RiskReason: "Looks genuine"}, res.Risk)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestComplaintService_SubmitKeepsReporterWhenNotAnonymous(t *testing.T) {
	repo := new(MockComplaintRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return c.ReporterID == "anon-42" && c.Language == "en"
	})).Return(nil).Once()

	sub := validSubmission()
	sub.Anonymous = false

	_, err := newTestComplaintService(repo, new(MockEvidenceStore)).Submit(context.Background(), session, sub)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestComplaintService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*models.ComplaintSubmission)
		field  string
	}{
		{"blank category", func(s *models.ComplaintSubmission) { s.Category = "  " }, "category"},
		{"blank description", func(s *models.ComplaintSubmission) { s.Description = "\n\t" }, "description"},
		{"blank location", func(s *models.ComplaintSubmission) { s.Location = "" }, "location"},
		{"too many files", func(s *models.ComplaintSubmission) {
			s.Evidence = make([]models.EvidenceUpload, 11)
		}, "evidence"},
		{"file too large", func(s *models.ComplaintSubmission) {
			s.Evidence = []models.EvidenceUpload{{OriginalName: "video.mp4", Size: 50<<20 + 1}}
		}, "evidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockComplaintRepository)
			store := new(MockEvidenceStore)
			svc := newTestComplaintService(repo, store)

			sub := validSubmission()
			tt.modify(sub)

			_, err := svc.Submit(context.Background(), session, sub)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)

			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestComplaintService_SubmitFileAtLimit(t *testing.T) {
	repo := new(MockComplaintRepository)
	store := new(MockEvidenceStore)

	upload := models.EvidenceUpload{OriginalName: "photo.jpg", ContentType: "image/jpeg", Size: 50 << 20, Body: strings.NewReader("")}
	store.On("Save", mock.Anything, mock.Anything, upload).
		Return(models.EvidenceFile{Filename: "1-photo.jpg", OriginalName: "photo.jpg", Path: "evidence/1-photo.jpg", Size: 50 << 20}, nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return len(c.Evidence) == 1 && c.Evidence[0].OriginalName == "photo.jpg"
	})).Return(nil).Once()

	sub := validSubmission()
	sub.Evidence = []models.EvidenceUpload{upload}

	_, err := newTestComplaintService(repo, store).Submit(context.Background(), session, sub)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestComplaintService_SubmitStorageFailure(t *testing.T) {
	t.Run("repository", func(t *testing.T) {
		repo := new(MockComplaintRepository)
		pub := new(MockPublisher)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		_, err := newTestComplaintService(repo, new(MockEvidenceStore), WithPublisher(pub)).
			Submit(context.Background(), session, validSubmission())

		require.ErrorIs(t, err, ErrStorage)
		assert.NotContains(t, err.Error(), "connection reset")
		repo.AssertNumberOfCalls(t, "Create", 1)
		pub.AssertNotCalled(t, "PublishComplaint", mock.Anything, mock.Anything)
	})

	t.Run("evidence", func(t *testing.T) {
		repo := new(MockComplaintRepository)
		store := new(MockEvidenceStore)
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).
			Return(models.EvidenceFile{}, errors.New("bucket missing")).Once()

		sub := validSubmission()
		sub.Evidence = []models.EvidenceUpload{{OriginalName: "a.png", Size: 10, Body: strings.NewReader("0123456789")}}

		_, err := newTestComplaintService(repo, store).Submit(context.Background(), session, sub)
		require.ErrorIs(t, err, ErrStorage)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestComplaintService_SubmitSameNamedEvidence(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir, 1024, logger.NewNop())
	require.NoError(t, err)

	repo := new(MockComplaintRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return len(c.Evidence) == 2 && c.Evidence[0].Filename != c.Evidence[1].Filename
	})).Return(nil).Once()

	svc := NewComplaintService(repo, store, NewRiskScorer(), DefaultSubmissionLimits(), logger.NewNop(),
		WithCaseIDGenerator(func() string { return "CASE-12345" }))

	sub := validSubmission()
	sub.Evidence = []models.EvidenceUpload{
		{OriginalName: "image.jpg", ContentType: "image/jpeg", Size: 5, Body: strings.NewReader("first")},
		{OriginalName: "image.jpg", ContentType: "image/jpeg", Size: 6, Body: strings.NewReader("second")},
	}

	res, err := svc.Submit(context.Background(), session, sub)
	require.NoError(t, err)
	assert.True(t, res.Success)
	repo.AssertExpectations(t)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestComplaintService_SubmitFailureRemovesEvidence(t *testing.T) {
	t.Run("repository", func(t *testing.T) {
		dir := t.TempDir()
		store, err := storage.NewDiskStore(dir, 1024, logger.NewNop())
		require.NoError(t, err)

		repo := new(MockComplaintRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		sub := validSubmission()
		sub.Evidence = []models.EvidenceUpload{{OriginalName: "payslip.pdf", Size: 3, Body: strings.NewReader("pdf")}}

		_, err = NewComplaintService(repo, store, NewRiskScorer(), DefaultSubmissionLimits(), logger.NewNop()).
			Submit(context.Background(), session, sub)
		require.ErrorIs(t, err, ErrStorage)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("later evidence", func(t *testing.T) {
		repo := new(MockComplaintRepository)
		store := new(MockEvidenceStore)
		saved := models.EvidenceFile{Filename: "1-a-first.png", OriginalName: "first.png"}
		store.On("Save", mock.Anything, mock.Anything, mock.MatchedBy(func(u models.EvidenceUpload) bool {
			return u.OriginalName == "first.png"
		})).Return(saved, nil).Once()
		store.On("Save", mock.Anything, mock.Anything, mock.MatchedBy(func(u models.EvidenceUpload) bool {
			return u.OriginalName == "second.png"
		})).Return(models.EvidenceFile{}, errors.New("bucket missing")).Once()
		store.On("Remove", mock.Anything, mock.Anything, saved).Return(nil).Once()

		sub := validSubmission()
		sub.Evidence = []models.EvidenceUpload{
			{OriginalName: "first.png", Size: 1, Body: strings.NewReader("1")},
			{OriginalName: "second.png", Size: 1, Body: strings.NewReader("2")},
		}

		_, err := newTestComplaintService(repo, store).Submit(context.Background(), session, sub)
		require.ErrorIs(t, err, ErrStorage)
		store.AssertExpectations(t)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestComplaintService_CaseIDCollision(t *testing.T) {
	repo := new(MockComplaintRepository)
	ids := []string{"CASE-11111", "CASE-22222"}
	n := 0
	gen := func() string {
		id := ids[n]
		n++
		return id
	}

	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool { return c.CaseID == "CASE-11111" })).
		Return(fmt.Errorf("insert: %w", repository.ErrDuplicateCaseID)).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool { return c.CaseID == "CASE-22222" })).
		Return(nil).Once()

	svc := newTestComplaintService(repo, new(MockEvidenceStore), WithCaseIDGenerator(gen))
	res, err := svc.Submit(context.Background(), session, validSubmission())
	require.NoError(t, err)
	assert.Equal(t, "CASE-22222", res.CaseID)
}

func TestComplaintService_PublishFailureDoesNotFailSubmit(t *testing.T) {
	repo := new(MockComplaintRepository)
	pub := new(MockPublisher)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishComplaint", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	res, err := newTestComplaintService(repo, new(MockEvidenceStore), WithPublisher(pub)).
		Submit(context.Background(), session, validSubmission())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestComplaintService_IndexesCoordinates(t *testing.T) {
	repo := new(MockComplaintRepository)
	idx := new(MockIndexer)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	idx.On("IndexComplaint", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return *c.Latitude == 21.17 && *c.Longitude == 72.83
	})).Return(nil).Once()

	sub := validSubmission()
	sub.Location = "21.17, 72.83"

	_, err := newTestComplaintService(repo, new(MockEvidenceStore), WithIndexer(idx)).Submit(context.Background(), session, sub)
	require.NoError(t, err)
	idx.AssertExpectations(t)
}

func TestComplaintService_CustomCategory(t *testing.T) {
	repo := new(MockComplaintRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return c.Category == "Wage theft by agent"
	})).Return(nil).Once()

	sub := validSubmission()
	sub.Category = models.CategoryOther
	sub.CustomCategory = " Wage theft by agent "

	_, err := newTestComplaintService(repo, new(MockEvidenceStore)).Submit(context.Background(), session, sub)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestComplaintService_Get(t *testing.T) {
	repo := new(MockComplaintRepository)
	stored := &models.Complaint{CaseID: "CASE-55555"}
	repo.On("GetByCaseID", mock.Anything, "CASE-55555").Return(stored, nil)
	repo.On("GetByCaseID", mock.Anything, "CASE-00000").Return(nil, nil)
	repo.On("GetByCaseID", mock.Anything, "CASE-99999").Return(nil, errors.New("boom"))

	svc := newTestComplaintService(repo, new(MockEvidenceStore))

	got, err := svc.Get(context.Background(), "case-55555")
	require.NoError(t, err)
	assert.Same(t, stored, got)

	_, err = svc.Get(context.Background(), "CASE-00000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "CASE-99999")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestComplaintService_ListClampsLimit(t *testing.T) {
	repo := new(MockComplaintRepository)
	repo.On("List", mock.Anything, models.ComplaintFilter{Limit: 20}).Return(nil, int64(0), nil)

	res, err := newTestComplaintService(repo, new(MockEvidenceStore)).List(context.Background(), models.ComplaintFilter{Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Limit)
	assert.NotNil(t, res.Complaints)
}

func TestNewCaseID(t *testing.T) {
	pattern := regexp.MustCompile(`^CASE-[1-9][0-9]{4}$`)
	for i := 0; i < 1000; i++ {
		assert.Regexp(t, pattern, NewCaseID())
	}
}

func TestParseLocation(t *testing.T) {
	lat, lng, ok := ParseLocation("28.6139, 77.2090")
	require.True(t, ok)
	assert.InDelta(t, 28.6139, lat, 1e-9)
	assert.InDelta(t, 77.2090, lng, 1e-9)

	for _, s := range []string{"Delhi", "91, 77", "28.6, 181", "a, b", "1,2,3", ""} {
		_, _, ok := ParseLocation(s)
		assert.False(t, ok, s)
	}
}
