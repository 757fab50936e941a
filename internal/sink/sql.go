package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect holds the driver-specific parts of the SQL sink.
type Dialect struct {
	Name        string
	Driver      string
	CreateTable string
	// CreatePresets creates the mapping_presets table.
	CreatePresets string
	// SingleConn limits the pool to one connection (sqlite, :memory:).
	SingleConn bool
}

var (
	SQLite = Dialect{
		Name:   DriverSQLite,
		Driver: "sqlite3",
		CreateTable: `
CREATE TABLE IF NOT EXISTS imported_records (
	entity      TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	data        TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	imported_at TIMESTAMP NOT NULL,
	PRIMARY KEY (entity, record_key)
)`,
		CreatePresets: `
CREATE TABLE IF NOT EXISTS mapping_presets (
	id         TEXT    PRIMARY KEY,
	entity     TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	mapping    TEXT    NOT NULL,
	headers    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (entity, name)
)`,
		SingleConn: true,
	}

	MySQL = Dialect{
		Name:   DriverMySQL,
		Driver: "mysql",
		CreateTable: `
CREATE TABLE IF NOT EXISTS imported_records (
	entity      VARCHAR(64)  NOT NULL,
	record_key  VARCHAR(255) NOT NULL,
	data        JSON         NOT NULL,
	session_id  VARCHAR(64)  NOT NULL,
	imported_at DATETIME(6)  NOT NULL,
	PRIMARY KEY (entity, record_key)
)`,
		CreatePresets: `
CREATE TABLE IF NOT EXISTS mapping_presets (
	id         VARCHAR(64)  NOT NULL PRIMARY KEY,
	entity     VARCHAR(64)  NOT NULL,
	name       VARCHAR(255) NOT NULL,
	mapping    JSON         NOT NULL,
	headers    JSON         NOT NULL,
	created_at BIGINT       NOT NULL,
	updated_at BIGINT       NOT NULL,
	UNIQUE KEY mapping_presets_entity_name (entity, name)
)`,
	}
)

const (
	sqlExists = `SELECT COUNT(*) FROM imported_records WHERE entity = ? AND record_key = ?`
	sqlInsert = `INSERT INTO imported_records (entity, record_key, data, session_id, imported_at) VALUES (?, ?, ?, ?, ?)`
	sqlUpdate = `UPDATE imported_records SET data = ?, session_id = ?, imported_at = ? WHERE entity = ? AND record_key = ?`
)

// SQL writes records through database/sql. Both supported dialects use ?
// placeholders, so the statements are shared.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL opens dsn with the dialect's driver and ensures the records and
// preset tables exist.
func NewSQL(ctx context.Context, d Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.SingleConn {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s: %w", TableName, err)
	}
	if _, err := db.ExecContext(ctx, d.CreatePresets); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s: %w", PresetTable, err)
	}

	return &SQL{db: db, dialect: d}, nil
}

// Ingest writes req.Records in one transaction.
func (s *SQL) Ingest(ctx context.Context, req core.IngestRequest) (core.IngestStats, error) {
	var stats core.IngestStats
	if len(req.Records) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareContext(ctx, sqlExists)
	if err != nil {
		return stats, fmt.Errorf("prepare exists: %w", err)
	}
	defer exists.Close()

	insert, err := tx.PrepareContext(ctx, sqlInsert)
	if err != nil {
		return stats, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, sqlUpdate)
	if err != nil {
		return stats, fmt.Errorf("prepare update: %w", err)
	}
	defer update.Close()

	now := time.Now().UTC()
	for i, rec := range req.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return core.IngestStats{}, fmt.Errorf("encode record %d: %w", i+1, err)
		}
		key := recordKey(req.KeyField, rec)

		var n int
		if err := exists.QueryRowContext(ctx, req.Entity, key).Scan(&n); err != nil {
			return core.IngestStats{}, fmt.Errorf("check record %d: %w", i+1, err)
		}

		switch {
		case n == 0:
			if _, err := insert.ExecContext(ctx, req.Entity, key, string(data), req.SessionID, now); err != nil {
				return core.IngestStats{}, fmt.Errorf("insert record %d: %w", i+1, err)
			}
			stats.Inserted++
		case req.UpdateExisting:
			if _, err := update.ExecContext(ctx, string(data), req.SessionID, now, req.Entity, key); err != nil {
				return core.IngestStats{}, fmt.Errorf("update record %d: %w", i+1, err)
			}
			stats.Updated++
		default:
			stats.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return core.IngestStats{}, fmt.Errorf("commit transaction: %w", err)
	}
	return stats, nil
}

// DB returns the underlying database handle.
func (s *SQL) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}
