// Package sink writes committed import records to a database.
//
// Every sink stores records in one table, imported_records, keyed by
// (entity, record_key). The record key is the value of the schema's key
// field; records without one get a random UUID and are always inserted.
//
// With UpdateExisting set an existing key is overwritten and counted as
// updated; otherwise it is left alone and counted as skipped. All records
// of one commit are written in a single transaction.
//
// The database sinks also implement preset storage (see presets.go).
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/google/uuid"
)

// TableName is the table every sink writes to.
const TableName = "imported_records"

// Sink receives committed records.
type Sink interface {
	Ingest(ctx context.Context, req core.IngestRequest) (core.IngestStats, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config selects a sink. MaxConns and MinConns size the postgres pool and
// are ignored by other drivers when zero.
type Config struct {
	Driver   string
	URL      string
	MaxConns int
	MinConns int
}

// Open connects to the sink named by cfg.Driver and creates the records
// table if needed. DriverNone returns a nil Sink.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverPostgres:
		pg, err := NewPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverSQLite, DriverMySQL:
		d := SQLite
		if strings.EqualFold(cfg.Driver, DriverMySQL) {
			d = MySQL
		}
		s, err := NewSQL(ctx, d, cfg.URL)
		if err != nil {
			return nil, err
		}
		if cfg.MaxConns > 0 && !d.SingleConn {
			s.db.SetMaxOpenConns(cfg.MaxConns)
			s.db.SetMaxIdleConns(cfg.MinConns)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink driver %q", cfg.Driver)
	}
}

// IngestFunc adapts s for core.Session.Commit. A nil sink yields a nil func.
func IngestFunc(s Sink) core.IngestFunc {
	if s == nil {
		return nil
	}
	return s.Ingest
}

// recordKey returns the natural key of rec, or a new UUID when the schema
// has no key field or the record has no value for it.
func recordKey(keyField string, rec core.Record) string {
	if keyField != "" {
		if v, ok := rec[keyField]; ok {
			if k := strings.TrimSpace(v.String()); k != "" {
				return k
			}
		}
	}
	return uuid.NewString()
}
