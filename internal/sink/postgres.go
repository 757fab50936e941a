package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgCreateTable = `
CREATE TABLE IF NOT EXISTS imported_records (
	entity      TEXT        NOT NULL,
	record_key  TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	session_id  TEXT        NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity, record_key)
)`

// xmax is 0 only for rows created by this statement.
const pgUpsert = `
INSERT INTO imported_records (entity, record_key, data, session_id, imported_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (entity, record_key) DO UPDATE
SET data = EXCLUDED.data, session_id = EXCLUDED.session_id, imported_at = EXCLUDED.imported_at
RETURNING (xmax = 0)`

const pgInsertNew = `
INSERT INTO imported_records (entity, record_key, data, session_id, imported_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (entity, record_key) DO NOTHING
RETURNING true`

// Postgres writes records with pgx, batching every insert of a commit into
// one round trip inside a transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to cfg.URL and ensures the records and preset
// tables exist.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCreateTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create %s: %w", TableName, err)
	}
	if _, err := pool.Exec(ctx, pgCreatePresets); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create %s: %w", PresetTable, err)
	}
	return &Postgres{pool: pool}, nil
}

// Ingest writes req.Records in one transaction.
func (p *Postgres) Ingest(ctx context.Context, req core.IngestRequest) (core.IngestStats, error) {
	var stats core.IngestStats
	if len(req.Records) == 0 {
		return stats, nil
	}

	query := pgInsertNew
	if req.UpdateExisting {
		query = pgUpsert
	}

	batch := &pgx.Batch{}
	for i, rec := range req.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return stats, fmt.Errorf("encode record %d: %w", i+1, err)
		}
		batch.Queue(query, req.Entity, recordKey(req.KeyField, rec), string(data), req.SessionID)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := range req.Records {
		var inserted bool
		err := results.QueryRow().Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			stats.Skipped++
		case err != nil:
			results.Close()
			return core.IngestStats{}, fmt.Errorf("write record %d: %w", i+1, err)
		case inserted:
			stats.Inserted++
		default:
			stats.Updated++
		}
	}
	if err := results.Close(); err != nil {
		return core.IngestStats{}, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.IngestStats{}, fmt.Errorf("commit transaction: %w", err)
	}
	return stats, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
