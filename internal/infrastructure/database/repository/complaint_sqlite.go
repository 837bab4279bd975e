package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"beacon/internal/domain/models"
)

// SQLiteComplaintRepository stores complaints in a local SQLite file.
// Timestamps are kept as unix nanoseconds so range queries compare numbers.
type SQLiteComplaintRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteComplaintRepository creates a new SQLiteComplaintRepository
func NewSQLiteComplaintRepository(db *sql.DB) *SQLiteComplaintRepository {
	return &SQLiteComplaintRepository{db: db, now: time.Now}
}

// Create inserts a new complaint
func (r *SQLiteComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	files, err := marshalFiles(c.Evidence)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID.String(), c.CaseID, string(c.Category), c.Description, c.Location,
		sqlFloatOrNull(c.Latitude), sqlFloatOrNull(c.Longitude), c.Anonymous, sqlTextOrNull(c.ReporterID),
		c.Language, string(files), string(c.Status),
		c.RiskScore, string(c.RiskLabel), c.RiskReason,
		sqlTextOrNull(string(c.Priority)), c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", ErrDuplicateCaseID, c.CaseID)
		}
		return fmt.Errorf("failed to create complaint: %w", err)
	}

	return nil
}

// GetByCaseID retrieves a complaint by case ID. A missing complaint is (nil, nil).
func (r *SQLiteComplaintRepository) GetByCaseID(ctx context.Context, caseID string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE case_id = ?`

	c, err := scanSQLiteComplaint(r.db.QueryRowContext(ctx, query, caseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}

	return c, nil
}

// List returns a page of complaints, newest first, and the filtered total
func (r *SQLiteComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int64, error) {
	where, args := filterClause(filter, func(int) string { return "?" })

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count complaints: %w", err)
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	complaints, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list complaints: %w", err)
	}

	return complaints, total, nil
}

// ListLocated returns complaints with coordinates created since the given time
func (r *SQLiteComplaintRepository) ListLocated(ctx context.Context, since time.Time) ([]models.Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL AND created_at >= ?
		ORDER BY created_at
	`

	complaints, err := r.query(ctx, query, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to list located complaints: %w", err)
	}

	return complaints, nil
}

// MarkStale moves complaints still new before olderThan into review
func (r *SQLiteComplaintRepository) MarkStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE complaints
		SET status = ?, updated_at = ?
		WHERE status = ? AND created_at < ?
	`

	res, err := r.db.ExecContext(ctx, query,
		string(models.ComplaintStatusNeedsReview),
		r.now().UTC().UnixNano(),
		string(models.ComplaintStatusNew),
		olderThan.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale complaints: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale complaints: %w", err)
	}
	return n, nil
}

func (r *SQLiteComplaintRepository) query(ctx context.Context, query string, args ...any) ([]models.Complaint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		c, err := scanSQLiteComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, *c)
	}

	return complaints, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteComplaint(row rowScanner) (*models.Complaint, error) {
	var (
		c          models.Complaint
		category   string
		status     string
		riskLabel  string
		reporterID sql.NullString
		priority   sql.NullString
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		files      string
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(
		&c.ID, &c.CaseID, &category, &c.Description, &c.Location,
		&latitude, &longitude, &c.Anonymous, &reporterID,
		&c.Language, &files, &status,
		&c.RiskScore, &riskLabel, &c.RiskReason,
		&priority, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = models.Category(category)
	c.Status = models.ComplaintStatus(status)
	c.RiskLabel = models.RiskLabel(riskLabel)
	c.ReporterID = reporterID.String
	c.Priority = models.Priority(priority.String)
	if latitude.Valid && longitude.Valid {
		lat, lng := latitude.Float64, longitude.Float64
		c.Latitude, c.Longitude = &lat, &lng
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if c.Evidence, err = unmarshalFiles([]byte(files)); err != nil {
		return nil, err
	}

	return &c, nil
}
