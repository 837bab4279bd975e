package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"beacon/internal/domain/models"
	"beacon/internal/infrastructure/database"
)

// ErrDuplicateCaseID is returned by Create when the case ID is already taken
var ErrDuplicateCaseID = errors.New("case id already exists")

const pgUniqueViolation = "23505"

const complaintColumns = `id, case_id, category, description, location, latitude, longitude,
	anonymous, reporter_id, language, files, status, risk_score, risk_label, risk_reason,
	priority, created_at, updated_at`

// ComplaintRepository handles complaint persistence in PostgreSQL
type ComplaintRepository struct {
	db database.DBTX
}

// NewComplaintRepository creates a new ComplaintRepository
func NewComplaintRepository(db database.DBTX) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a new complaint
func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	files, err := marshalFiles(c.Evidence)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.db.Exec(ctx, query,
		c.ID, c.CaseID, string(c.Category), c.Description, c.Location,
		c.Latitude, c.Longitude, c.Anonymous, textOrNull(c.ReporterID),
		c.Language, files, string(c.Status),
		c.RiskScore, string(c.RiskLabel), c.RiskReason,
		textOrNull(string(c.Priority)), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateCaseID, c.CaseID)
		}
		return fmt.Errorf("failed to create complaint: %w", err)
	}

	return nil
}

// GetByCaseID retrieves a complaint by case ID. A missing complaint is (nil, nil).
func (r *ComplaintRepository) GetByCaseID(ctx context.Context, caseID string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE case_id = $1`

	c, err := scanPgComplaint(r.db.QueryRow(ctx, query, caseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}

	return c, nil
}

// List returns a page of complaints, newest first, and the filtered total
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int64, error) {
	where, args := filterClause(filter, pgPlaceholder)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM complaints`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count complaints: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM complaints%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		complaintColumns, where, n+1, n+2)
	args = append(args, filter.Limit, filter.Offset)

	complaints, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list complaints: %w", err)
	}

	return complaints, total, nil
}

// ListLocated returns complaints with coordinates created since the given time
func (r *ComplaintRepository) ListLocated(ctx context.Context, since time.Time) ([]models.Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL AND created_at >= $1
		ORDER BY created_at
	`

	complaints, err := r.query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list located complaints: %w", err)
	}

	return complaints, nil
}

// MarkStale moves complaints still new before olderThan into review
func (r *ComplaintRepository) MarkStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE complaints
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
	`

	tag, err := r.db.Exec(ctx, query,
		string(models.ComplaintStatusNeedsReview),
		string(models.ComplaintStatusNew),
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale complaints: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *ComplaintRepository) query(ctx context.Context, query string, args ...any) ([]models.Complaint, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		c, err := scanPgComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, *c)
	}

	return complaints, rows.Err()
}

func scanPgComplaint(row pgx.Row) (*models.Complaint, error) {
	var (
		c          models.Complaint
		category   string
		status     string
		riskLabel  string
		reporterID pgtype.Text
		priority   pgtype.Text
		files      []byte
	)

	err := row.Scan(
		&c.ID, &c.CaseID, &category, &c.Description, &c.Location,
		&c.Latitude, &c.Longitude, &c.Anonymous, &reporterID,
		&c.Language, &files, &status,
		&c.RiskScore, &riskLabel, &c.RiskReason,
		&priority, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = models.Category(category)
	c.Status = models.ComplaintStatus(status)
	c.RiskLabel = models.RiskLabel(riskLabel)
	c.ReporterID = nullTextToString(reporterID)
	c.Priority = models.Priority(nullTextToString(priority))
	if c.Evidence, err = unmarshalFiles(files); err != nil {
		return nil, err
	}

	return &c, nil
}

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// filterClause builds the WHERE clause shared by both SQL backends
func filterClause(filter models.ComplaintFilter, placeholder func(int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, "category = "+placeholder(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = "+placeholder(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
