package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS vin_scans (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL,
	vin            TEXT NOT NULL DEFAULT '',
	transcription  TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	ocr_engine     TEXT NOT NULL DEFAULT '',
	language       TEXT NOT NULL DEFAULT '',
	stage_errors   TEXT[] NOT NULL DEFAULT '{}',
	diagnostics    JSONB,
	accuracy       JSONB,
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS vin_scans_created_at_idx ON vin_scans (created_at DESC);`

const selectColumns = `id, source, state, vin, transcription, failure_reason, ocr_engine, language,
	stage_errors::text, diagnostics::text, accuracy::text, duration_ms, created_at`

// PostgresRepository stores scans in PostgreSQL through the pgx database/sql driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens the database, verifies the connection and
// creates the vin_scans table when missing.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := &PostgresRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepositoryFromDB wraps an existing handle without migrating.
func NewPostgresRepositoryFromDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) migrate(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create vin_scans: %w", err)
	}
	return nil
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (p *PostgresRepository) Save(ctx context.Context, r *ScanRecord) error {
	if r == nil || r.ID == "" {
		return ErrInvalidRecord
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// a nil StringArray encodes as NULL
	stageErrors := r.StageErrors
	if stageErrors == nil {
		stageErrors = []string{}
	}

	query := `INSERT INTO vin_scans (id, source, state, vin, transcription, failure_reason, ocr_engine,
		language, stage_errors, diagnostics, accuracy, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text[], $10::jsonb, $11::jsonb, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			vin = EXCLUDED.vin,
			transcription = EXCLUDED.transcription,
			failure_reason = EXCLUDED.failure_reason,
			stage_errors = EXCLUDED.stage_errors,
			diagnostics = EXCLUDED.diagnostics,
			accuracy = EXCLUDED.accuracy,
			duration_ms = EXCLUDED.duration_ms`

	_, err := p.db.ExecContext(ctx, query,
		r.ID, r.Source, r.State, r.VIN, r.Transcription, r.FailureReason, r.OCREngine, r.Language,
		pq.Array(stageErrors), nullJSON(r.Diagnostics), nullJSON(r.Accuracy), r.DurationMS, createdAt,
	)
	if err != nil {
		return fmt.Errorf("ScanRepository.Save: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		r           ScanRecord
		stageErrors pq.StringArray
		diagnostics sql.NullString
		accuracy    sql.NullString
	)
	err := row.Scan(&r.ID, &r.Source, &r.State, &r.VIN, &r.Transcription, &r.FailureReason,
		&r.OCREngine, &r.Language, &stageErrors, &diagnostics, &accuracy, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(stageErrors) > 0 {
		r.StageErrors = []string(stageErrors)
	}
	if diagnostics.Valid {
		r.Diagnostics = []byte(diagnostics.String)
	}
	if accuracy.Valid {
		r.Accuracy = []byte(accuracy.String)
	}
	r.CreatedAt = r.CreatedAt.In(time.UTC)
	return &r, nil
}

func (p *PostgresRepository) Get(ctx context.Context, id string) (*ScanRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM vin_scans WHERE id = $1`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ScanRepository.Get: %w", err)
	}
	return r, nil
}

func (p *PostgresRepository) List(ctx context.Context, limit int) ([]*ScanRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM vin_scans ORDER BY created_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ScanRepository.List: %w", err)
	}
	defer rows.Close()

	var out []*ScanRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ScanRepository.List: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) Close() error {
	return p.db.Close()
}
