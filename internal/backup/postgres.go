package backup

// postgres.go implements Store on PostgreSQL for deployments running more
// than one bridge instance, where the single-file store would race. Records
// are stored one row per composite key with the full record as JSONB; the
// merge policy is applied inside a row-locking transaction so concurrent
// reconciliations cannot clobber each other.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore creates a Postgres-backed store on an existing pool. Run
// MigrateUp before first use.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

// Get returns the record stored under key, or ErrNotFound.
func (s *PGStore) Get(ctx context.Context, key string) (*Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM backup_records WHERE key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backup record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("backup record %s is corrupt: %w", key, err)
	}
	return &rec, nil
}

// List returns all records ordered by key.
func (s *PGStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM backup_records ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan backup record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("backup record is corrupt: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Upsert merges rec into the stored set under its composite key. The
// existing row is locked for the duration of the merge so concurrent
// reconciliations of the same document serialize.
func (s *PGStore) Upsert(ctx context.Context, rec Record) (*Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	merged := rec
	var payload []byte
	err = tx.QueryRow(ctx,
		`SELECT payload FROM backup_records WHERE key = $1 FOR UPDATE`, rec.Key(),
	).Scan(&payload)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// first save: stored as-is
	case err != nil:
		return nil, fmt.Errorf("failed to lock backup record: %w", err)
	default:
		var existing Record
		if err := json.Unmarshal(payload, &existing); err != nil {
			return nil, fmt.Errorf("backup record %s is corrupt: %w", rec.Key(), err)
		}
		merged = Merge(existing, rec)
	}
	merged.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup record: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO backup_records (key, tax_id, document_no, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		merged.Key(), merged.TaxID, merged.DocumentNo, data, merged.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert backup record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit backup upsert: %w", err)
	}
	return &merged, nil
}

// ReplaceAll replaces the stored set wholesale in a single transaction.
func (s *PGStore) ReplaceAll(ctx context.Context, recs []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE backup_records`); err != nil {
		return fmt.Errorf("failed to clear backup records: %w", err)
	}

	now := s.now().UTC()
	for _, rec := range recs {
		rec.UpdatedAt = now
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal backup record: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO backup_records (key, tax_id, document_no, payload, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			rec.Key(), rec.TaxID, rec.DocumentNo, data, now,
		); err != nil {
			return fmt.Errorf("failed to insert backup record: %w", err)
		}
	}

	return tx.Commit(ctx)
}
