package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mbs-billing-assistant/internal/domain"
)

// SQLiteConsultationStore implements domain.ConsultationRepository using
// SQLite. Extraction and recommendation results are stored as JSON columns
// so the schema does not have to follow every engine change.
type SQLiteConsultationStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteConsultationStore creates a new SQLite consultation store.
// It creates the database file and schema if they don't exist.
func NewSQLiteConsultationStore(dbPath string) (*SQLiteConsultationStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteConsultationStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanConsultation scans a row into a ConsultationRecord.
func scanConsultation(s scanner) (*domain.ConsultationRecord, error) {
	record := &domain.ConsultationRecord{}
	var (
		patientAge          sql.NullInt64
		infoJSON            string
		recommendationsJSON string
	)

	err := s.Scan(
		&record.ID, &record.PatientID, &record.ProviderID,
		&record.RawText, &record.DurationMinutes, &patientAge,
		&infoJSON, &recommendationsJSON, &record.Summary, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if patientAge.Valid {
		age := int(patientAge.Int64)
		record.PatientAge = &age
	}
	if err := json.Unmarshal([]byte(infoJSON), &record.Info); err != nil {
		return nil, fmt.Errorf("failed to decode info: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendationsJSON), &record.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	return record, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS consultations (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL DEFAULT '',
		raw_text TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		patient_age INTEGER,
		info TEXT NOT NULL DEFAULT '{}',
		recommendations TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_consultations_patient ON consultations(patient_id);
	CREATE INDEX IF NOT EXISTS idx_consultations_created ON consultations(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces a consultation record.
func (s *SQLiteConsultationStore) Save(ctx context.Context, record *domain.ConsultationRecord) error {
	if record.ID == "" {
		return domain.NewInvalidInput("id", "consultation ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	infoJSON, err := json.Marshal(record.Info)
	if err != nil {
		return fmt.Errorf("failed to encode info: %w", err)
	}
	recommendationsJSON, err := json.Marshal(record.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	var patientAge sql.NullInt64
	if record.PatientAge != nil {
		patientAge = sql.NullInt64{Int64: int64(*record.PatientAge), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO consultations (
			id, patient_id, provider_id, raw_text, duration_minutes,
			patient_age, info, recommendations, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.PatientID,
		record.ProviderID,
		record.RawText,
		record.DurationMinutes,
		patientAge,
		string(infoJSON),
		string(recommendationsJSON),
		record.Summary,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a consultation record by ID. Returns nil when not found.
func (s *SQLiteConsultationStore) Get(ctx context.Context, id string) (*domain.ConsultationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, provider_id, raw_text, duration_minutes,
			patient_age, info, recommendations, summary, created_at
		FROM consultations
		WHERE id = ?
		LIMIT 1
	`, id)

	record, err := scanConsultation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// List returns consultation records newest first with pagination.
func (s *SQLiteConsultationStore) List(ctx context.Context, limit, offset int) ([]*domain.ConsultationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, provider_id, raw_text, duration_minutes,
			patient_age, info, recommendations, summary, created_at
		FROM consultations
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.ConsultationRecord
	for rows.Next() {
		record, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of stored consultations.
func (s *SQLiteConsultationStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM consultations").Scan(&count)
	return count, err
}

// Delete removes a consultation record by ID.
func (s *SQLiteConsultationStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM consultations WHERE id = ?", id)
	return err
}

// Close closes the store and releases resources.
func (s *SQLiteConsultationStore) Close() error {
	return s.db.Close()
}
