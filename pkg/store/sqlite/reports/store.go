package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/models/store"
	"github.com/de-tools/carbon-atlas/pkg/store/sqlite"
)

var ErrNotFound = errors.New("report not found")

const defaultListLimit = 100

// Store persists one report per source reference; saving again replaces it.
type Store interface {
	Save(ctx context.Context, record store.ReportRecord) error
	// RecordFailure saves a failed attempt unless a processed report already exists
	// for the same source reference, and reports whether it was written.
	RecordFailure(ctx context.Context, record store.ReportRecord) (bool, error)
	Get(ctx context.Context, sourceReference string) (*store.ReportRecord, error)
	// List returns the most recent reports first, without raw text or payload.
	List(ctx context.Context, limit int) ([]store.ReportRecord, error)
}

type reportStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &reportStore{db: db}, nil
}

func (s *reportStore) Save(ctx context.Context, record store.ReportRecord) error {
	if record.SourceReference == "" {
		return fmt.Errorf("source reference is required")
	}

	query := `
		INSERT INTO reports (
			id, source_reference, status, raw_text, total_co2_kg, item_count,
			factor_table_version, extractor, fingerprint, error, payload,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_reference) DO UPDATE SET
			id = excluded.id,
			status = excluded.status,
			raw_text = excluded.raw_text,
			total_co2_kg = excluded.total_co2_kg,
			item_count = excluded.item_count,
			factor_table_version = excluded.factor_table_version,
			extractor = excluded.extractor,
			fingerprint = excluded.fingerprint,
			error = excluded.error,
			payload = excluded.payload,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	_, err := sqlite.Conn(ctx, s.db).ExecContext(ctx, query,
		record.ID,
		record.SourceReference,
		record.Status,
		record.RawText,
		record.TotalCO2Kg,
		record.ItemCount,
		record.FactorTableVersion,
		record.Extractor,
		record.Fingerprint,
		record.Error,
		record.Payload,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (s *reportStore) RecordFailure(ctx context.Context, record store.ReportRecord) (bool, error) {
	written := false
	err := sqlite.InTransaction(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.Get(ctx, record.SourceReference)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == string(domain.ReportStatusProcessed) {
			return nil
		}
		written = true
		return s.Save(ctx, record)
	})
	if err != nil {
		return false, err
	}
	return written, nil
}

func (s *reportStore) Get(ctx context.Context, sourceReference string) (*store.ReportRecord, error) {
	query := `
		SELECT id, source_reference, status, raw_text, total_co2_kg, item_count,
		       factor_table_version, extractor, fingerprint, error, payload,
		       created_at, updated_at
		FROM reports
		WHERE source_reference = ?`

	var rec store.ReportRecord
	var errText sql.NullString
	err := sqlite.Conn(ctx, s.db).QueryRowContext(ctx, query, sourceReference).Scan(
		&rec.ID,
		&rec.SourceReference,
		&rec.Status,
		&rec.RawText,
		&rec.TotalCO2Kg,
		&rec.ItemCount,
		&rec.FactorTableVersion,
		&rec.Extractor,
		&rec.Fingerprint,
		&errText,
		&rec.Payload,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if errText.Valid {
		rec.Error = &errText.String
	}
	return &rec, nil
}

func (s *reportStore) List(ctx context.Context, limit int) ([]store.ReportRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, source_reference, status, total_co2_kg, item_count,
		       factor_table_version, extractor, fingerprint, error,
		       created_at, updated_at
		FROM reports
		ORDER BY created_at DESC, source_reference
		LIMIT ?`

	rows, err := sqlite.Conn(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	records := []store.ReportRecord{}
	for rows.Next() {
		var rec store.ReportRecord
		var errText sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.SourceReference,
			&rec.Status,
			&rec.TotalCO2Kg,
			&rec.ItemCount,
			&rec.FactorTableVersion,
			&rec.Extractor,
			&rec.Fingerprint,
			&errText,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if errText.Valid {
			rec.Error = &errText.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return records, nil
}
