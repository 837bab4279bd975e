package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"beacon/internal/domain/models"
)

// Text conversion helpers

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullTextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func sqlTextOrNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sqlFloatOrNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Evidence list helpers

func marshalFiles(files []models.EvidenceFile) ([]byte, error) {
	if files == nil {
		files = []models.EvidenceFile{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evidence files: %w", err)
	}
	return data, nil
}

func unmarshalFiles(data []byte) ([]models.EvidenceFile, error) {
	files := []models.EvidenceFile{}
	if len(data) == 0 {
		return files, nil
	}
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence files: %w", err)
	}
	return files, nil
}
