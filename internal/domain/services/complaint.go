package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"beacon/internal/domain/models"
	"beacon/internal/infrastructure/database/repository"
	"beacon/pkg/logger"
)

// ComplaintRepository persists complaints
type ComplaintRepository interface {
	Create(ctx context.Context, c *models.Complaint) error
	GetByCaseID(ctx context.Context, caseID string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int64, error)
	ListLocated(ctx context.Context, since time.Time) ([]models.Complaint, error)
	MarkStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// EvidenceStore keeps uploaded evidence files
type EvidenceStore interface {
	Save(ctx context.Context, complaintID uuid.UUID, upload models.EvidenceUpload) (models.EvidenceFile, error)
	Remove(ctx context.Context, complaintID uuid.UUID, file models.EvidenceFile) error
}

// ComplaintEventPublisher announces new complaints
type ComplaintEventPublisher interface {
	PublishComplaint(ctx context.Context, c *models.Complaint) error
}

// ComplaintIndexer adds located complaints to the heatmap index
type ComplaintIndexer interface {
	IndexComplaint(ctx context.Context, c *models.Complaint) error
}

// SubmissionLimits bounds a single submission
type SubmissionLimits struct {
	MaxFiles       int
	MaxFileSize    int64
	CaseIDAttempts int
}

// DefaultSubmissionLimits matches the upload limits of the mobile app
func DefaultSubmissionLimits() SubmissionLimits {
	return SubmissionLimits{
		MaxFiles:       10,
		MaxFileSize:    50 << 20,
		CaseIDAttempts: 5,
	}
}

// ComplaintService runs the complaint submission flow
type ComplaintService struct {
	repo      ComplaintRepository
	evidence  EvidenceStore
	publisher ComplaintEventPublisher
	indexer   ComplaintIndexer
	scorer    *RiskScorer
	limits    SubmissionLimits
	logger    *logger.Logger

	newCaseID func() string
	now       func() time.Time
}

// ComplaintServiceOption customizes a ComplaintService
type ComplaintServiceOption func(*ComplaintService)

// WithPublisher sets the event publisher
func WithPublisher(p ComplaintEventPublisher) ComplaintServiceOption {
	return func(s *ComplaintService) { s.publisher = p }
}

// WithIndexer sets the heatmap indexer
func WithIndexer(i ComplaintIndexer) ComplaintServiceOption {
	return func(s *ComplaintService) { s.indexer = i }
}

// WithCaseIDGenerator replaces the random case ID source
func WithCaseIDGenerator(gen func() string) ComplaintServiceOption {
	return func(s *ComplaintService) { s.newCaseID = gen }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ComplaintServiceOption {
	return func(s *ComplaintService) { s.now = now }
}

// NewComplaintService creates a new ComplaintService
func NewComplaintService(
	repo ComplaintRepository,
	evidence EvidenceStore,
	scorer *RiskScorer,
	limits SubmissionLimits,
	log *logger.Logger,
	opts ...ComplaintServiceOption,
) *ComplaintService {
	if limits.CaseIDAttempts <= 0 {
		limits.CaseIDAttempts = 1
	}
	s := &ComplaintService{
		repo:      repo,
		evidence:  evidence,
		scorer:    scorer,
		limits:    limits,
		logger:    log.WithComponent("complaints"),
		newCaseID: NewCaseID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCaseID returns a CASE-##### identifier in 10000..99999
func NewCaseID() string {
	return fmt.Sprintf("CASE-%d", 10000+rand.IntN(90000))
}

// Validate checks a submission without touching storage
func (s *ComplaintService) Validate(sub *models.ComplaintSubmission) error {
	verr := &ValidationError{}

	if strings.TrimSpace(string(sub.Category)) == "" {
		verr.Add("category", "category is required")
	}
	if strings.TrimSpace(sub.Description) == "" {
		verr.Add("description", "description is required")
	}
	if strings.TrimSpace(sub.Location) == "" {
		verr.Add("location", "location is required")
	}
	if len(sub.Evidence) > s.limits.MaxFiles {
		verr.Add("evidence", fmt.Sprintf("at most %d files are allowed", s.limits.MaxFiles))
	}
	for _, f := range sub.Evidence {
		if f.Size > s.limits.MaxFileSize {
			verr.Add("evidence", fmt.Sprintf("%s exceeds the %d MB limit", f.OriginalName, s.limits.MaxFileSize>>20))
		}
	}

	return verr.OrNil()
}

// Submit validates, scores and stores a complaint. The risk assessment is
// always recomputed here; client-sent values are only compared for logging.
// Storage is attempted once. A case ID collision draws a new ID.
func (s *ComplaintService) Submit(ctx context.Context, sess models.Session, sub *models.ComplaintSubmission) (*models.SubmissionResult, error) {
	if err := s.Validate(sub); err != nil {
		return nil, err
	}

	risk := s.scorer.Score(sub.Description)
	if sub.ClientRisk != nil && *sub.ClientRisk != risk {
		s.logger.Warn().
			Float64("client_score", sub.ClientRisk.RiskScore).
			Str("client_label", string(sub.ClientRisk.RiskLabel)).
			Float64("server_score", risk.RiskScore).
			Str("server_label", string(risk.RiskLabel)).
			Msg("client risk assessment differs, using server value")
	}

	now := s.now().UTC()
	complaint := &models.Complaint{
		ID:          uuid.New(),
		Category:    resolveCategory(sub),
		Description: sub.Description,
		Location:    strings.TrimSpace(sub.Location),
		Anonymous:   sub.Anonymous,
		Language:    sess.LanguageCode(),
		Status:      models.ComplaintStatusNew,
		RiskScore:   risk.RiskScore,
		RiskLabel:   risk.RiskLabel,
		RiskReason:  risk.RiskReason,
		Priority:    AssessPriority(sub.Description),
		Evidence:    []models.EvidenceFile{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !sub.Anonymous {
		complaint.ReporterID = sess.AnonID
	}
	if lat, lng, ok := ParseLocation(complaint.Location); ok {
		complaint.Latitude = &lat
		complaint.Longitude = &lng
	}

	for _, upload := range sub.Evidence {
		file, err := s.evidence.Save(ctx, complaint.ID, upload)
		if err != nil {
			s.logger.Error().Err(err).
				Str("complaint_id", complaint.ID.String()).
				Str("file", upload.OriginalName).
				Msg("failed to store evidence")
			s.discardEvidence(ctx, complaint)
			return nil, fmt.Errorf("%w: evidence", ErrStorage)
		}
		complaint.Evidence = append(complaint.Evidence, file)
	}

	if err := s.create(ctx, complaint); err != nil {
		s.discardEvidence(ctx, complaint)
		return nil, err
	}

	log := s.logger.WithCaseID(complaint.CaseID)
	log.Info().
		Str("category", string(complaint.Category)).
		Str("risk_label", string(complaint.RiskLabel)).
		Int("evidence", len(complaint.Evidence)).
		Bool("anonymous", complaint.Anonymous).
		Msg("complaint submitted")

	if s.publisher != nil {
		if err := s.publisher.PublishComplaint(ctx, complaint); err != nil {
			log.Warn().Err(err).Msg("failed to publish complaint event")
		}
	}
	if s.indexer != nil && complaint.HasCoordinates() {
		if err := s.indexer.IndexComplaint(ctx, complaint); err != nil {
			log.Warn().Err(err).Msg("failed to index complaint location")
		}
	}

	return &models.SubmissionResult{
		Success: true,
		CaseID:  complaint.CaseID,
		Message: "Saved",
		Risk:    risk,
	}, nil
}

// discardEvidence removes files saved for a complaint that was not stored
func (s *ComplaintService) discardEvidence(ctx context.Context, c *models.Complaint) {
	ctx = context.WithoutCancel(ctx)
	for _, file := range c.Evidence {
		if err := s.evidence.Remove(ctx, c.ID, file); err != nil {
			s.logger.Warn().Err(err).
				Str("complaint_id", c.ID.String()).
				Str("file", file.Filename).
				Msg("failed to remove orphaned evidence")
		}
	}
	c.Evidence = c.Evidence[:0]
}

func (s *ComplaintService) create(ctx context.Context, c *models.Complaint) error {
	for attempt := 1; attempt <= s.limits.CaseIDAttempts; attempt++ {
		c.CaseID = s.newCaseID()

		err := s.repo.Create(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateCaseID) {
			s.logger.Error().Err(err).Str("case_id", c.CaseID).Msg("failed to save complaint")
			return fmt.Errorf("%w: complaint", ErrStorage)
		}
		s.logger.Debug().Str("case_id", c.CaseID).Int("attempt", attempt).Msg("case id taken")
	}

	s.logger.Error().Int("attempts", s.limits.CaseIDAttempts).Msg("no free case id")
	return fmt.Errorf("%w: case id space exhausted", ErrStorage)
}

// Get returns a stored complaint by case ID
func (s *ComplaintService) Get(ctx context.Context, caseID string) (*models.Complaint, error) {
	c, err := s.repo.GetByCaseID(ctx, strings.ToUpper(strings.TrimSpace(caseID)))
	if err != nil {
		s.logger.Error().Err(err).Str("case_id", caseID).Msg("failed to load complaint")
		return nil, fmt.Errorf("%w: load complaint", ErrStorage)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// List returns the newest complaints first
func (s *ComplaintService) List(ctx context.Context, filter models.ComplaintFilter) (*models.ComplaintListResponse, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	complaints, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list complaints")
		return nil, fmt.Errorf("%w: list complaints", ErrStorage)
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}

	return &models.ComplaintListResponse{
		Complaints: complaints,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Preview scores a draft without storing anything
func (s *ComplaintService) Preview(description string) models.AssessmentPreview {
	return models.AssessmentPreview{
		Risk:     s.scorer.Score(description),
		Priority: AssessPriority(description),
	}
}

// SweepStale moves complaints still new after maxAge into review
func (s *ComplaintService) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.repo.MarkStale(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("%w: sweep stale complaints", ErrStorage)
	}
	return n, nil
}

func resolveCategory(sub *models.ComplaintSubmission) models.Category {
	if sub.Category == models.CategoryOther {
		if custom := strings.TrimSpace(sub.CustomCategory); custom != "" {
			return models.Category(custom)
		}
	}
	return models.Category(strings.TrimSpace(string(sub.Category)))
}

// ParseLocation reads a "lat, lng" pair as produced by the app's location
// toggle. Free-text addresses return ok=false.
func ParseLocation(s string) (lat, lng float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if !ValidCoordinates(lat, lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

// ValidCoordinates reports whether lat/lng are finite WGS84 values
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
