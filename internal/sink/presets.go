package sink

// presets.go stores saved mappings (core.Preset) next to the imported
// records, so a team sharing one database also shares its presets. The
// table is mapping_presets with a unique (entity, name) pair.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// PresetTable is the table presets are stored in.
const PresetTable = "mapping_presets"

const pgCreatePresets = `
CREATE TABLE IF NOT EXISTS mapping_presets (
	id         TEXT        PRIMARY KEY,
	entity     TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	mapping    JSONB       NOT NULL,
	headers    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (entity, name)
)`

const pgPresetColumns = `id, entity, name, mapping, headers, created_at, updated_at`

// pgUniqueViolation is the SQLSTATE for a unique constraint failure.
const pgUniqueViolation = "23505"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// CreatePreset inserts p. A name already used for the entity returns
// core.ErrPresetExists.
func (p *Postgres) CreatePreset(ctx context.Context, preset core.Preset) error {
	mapping, headers, err := encodePreset(preset)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO mapping_presets (`+pgPresetColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		preset.ID, preset.Entity, preset.Name, mapping, headers, preset.CreatedAt, preset.UpdatedAt)
	if err != nil {
		return presetWriteError(preset, err)
	}
	return nil
}

// GetPreset returns the preset with id.
func (p *Postgres) GetPreset(ctx context.Context, id string) (core.Preset, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgPresetColumns+` FROM mapping_presets WHERE id = $1`, id)
	preset, err := scanPgPreset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Preset{}, fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	return preset, err
}

// ListPresets returns the presets for entity ordered by name.
func (p *Postgres) ListPresets(ctx context.Context, entity string) ([]core.Preset, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+pgPresetColumns+` FROM mapping_presets WHERE entity = $1 ORDER BY name`, entity)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []core.Preset
	for rows.Next() {
		preset, err := scanPgPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return out, nil
}

// UpdatePreset replaces the name, mapping and headers of an existing preset.
func (p *Postgres) UpdatePreset(ctx context.Context, preset core.Preset) error {
	mapping, headers, err := encodePreset(preset)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE mapping_presets SET name = $2, mapping = $3, headers = $4, updated_at = $5 WHERE id = $1`,
		preset.ID, preset.Name, mapping, headers, preset.UpdatedAt)
	if err != nil {
		return presetWriteError(preset, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrPresetNotFound, preset.ID)
	}
	return nil
}

// DeletePreset removes the preset with id.
func (p *Postgres) DeletePreset(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM mapping_presets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	return nil
}

func scanPgPreset(row pgx.Row) (core.Preset, error) {
	var (
		preset           core.Preset
		mapping, headers []byte
	)
	if err := row.Scan(&preset.ID, &preset.Entity, &preset.Name, &mapping, &headers,
		&preset.CreatedAt, &preset.UpdatedAt); err != nil {
		return core.Preset{}, err
	}
	return decodePreset(preset, mapping, headers)
}

const sqlPresetColumns = `id, entity, name, mapping, headers, created_at, updated_at`

// CreatePreset inserts p. A name already used for the entity returns
// core.ErrPresetExists.
func (s *SQL) CreatePreset(ctx context.Context, preset core.Preset) error {
	mapping, headers, err := encodePreset(preset)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mapping_presets (`+sqlPresetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		preset.ID, preset.Entity, preset.Name, string(mapping), string(headers),
		preset.CreatedAt.UnixMilli(), preset.UpdatedAt.UnixMilli())
	if err != nil {
		return presetWriteError(preset, err)
	}
	return nil
}

// GetPreset returns the preset with id.
func (s *SQL) GetPreset(ctx context.Context, id string) (core.Preset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqlPresetColumns+` FROM mapping_presets WHERE id = ?`, id)
	preset, err := scanSQLPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Preset{}, fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	return preset, err
}

// ListPresets returns the presets for entity ordered by name.
func (s *SQL) ListPresets(ctx context.Context, entity string) ([]core.Preset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlPresetColumns+` FROM mapping_presets WHERE entity = ? ORDER BY name`, entity)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []core.Preset
	for rows.Next() {
		preset, err := scanSQLPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return out, nil
}

// UpdatePreset replaces the name, mapping and headers of an existing preset.
func (s *SQL) UpdatePreset(ctx context.Context, preset core.Preset) error {
	mapping, headers, err := encodePreset(preset)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE mapping_presets SET name = ?, mapping = ?, headers = ?, updated_at = ? WHERE id = ?`,
		preset.Name, string(mapping), string(headers), preset.UpdatedAt.UnixMilli(), preset.ID)
	if err != nil {
		return presetWriteError(preset, err)
	}
	return requireAffected(res, preset.ID)
}

// DeletePreset removes the preset with id.
func (s *SQL) DeletePreset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mapping_presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLPreset(row rowScanner) (core.Preset, error) {
	var (
		preset             core.Preset
		mapping, headers   string
		created, updatedAt int64
	)
	if err := row.Scan(&preset.ID, &preset.Entity, &preset.Name, &mapping, &headers,
		&created, &updatedAt); err != nil {
		return core.Preset{}, err
	}
	preset.CreatedAt = time.UnixMilli(created).UTC()
	preset.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return decodePreset(preset, []byte(mapping), []byte(headers))
}

func encodePreset(p core.Preset) (mapping, headers []byte, err error) {
	if mapping, err = json.Marshal(p.Mapping); err != nil {
		return nil, nil, fmt.Errorf("encode preset mapping: %w", err)
	}
	if headers, err = json.Marshal(p.Headers); err != nil {
		return nil, nil, fmt.Errorf("encode preset headers: %w", err)
	}
	return mapping, headers, nil
}

func decodePreset(p core.Preset, mapping, headers []byte) (core.Preset, error) {
	if err := json.Unmarshal(mapping, &p.Mapping); err != nil {
		return core.Preset{}, fmt.Errorf("decode preset %s mapping: %w", p.ID, err)
	}
	if err := json.Unmarshal(headers, &p.Headers); err != nil {
		return core.Preset{}, fmt.Errorf("decode preset %s headers: %w", p.ID, err)
	}
	return p, nil
}

// presetWriteError maps unique constraint failures from any driver to
// core.ErrPresetExists.
func presetWriteError(p core.Preset, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q for %s", core.ErrPresetExists, p.Name, p.Entity)
	}
	return fmt.Errorf("save preset: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
