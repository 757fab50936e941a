package core

// session.go implements the import session state machine.
//
// Stages:
//
//	upload -> mapping -> validation -> complete
//	             ^            |
//	             +------------+  BackToMapping
//
// Cancel returns any stage to a fresh upload stage. Every transition is
// synchronous: it either succeeds or leaves the session where it was.
// A Session is not safe for concurrent use; callers serialize access.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is a step of the import flow.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageMapping    Stage = "mapping"
	StageValidation Stage = "validation"
	StageComplete   Stage = "complete"
)

// IngestRequest is handed to the ingestion callback on commit.
type IngestRequest struct {
	SessionID      string
	Entity         string
	KeyField       string
	Records        []Record
	UpdateExisting bool
}

// IngestStats reports what a sink did with the records.
type IngestStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// IngestFunc receives every committed record in a single call.
type IngestFunc func(ctx context.Context, req IngestRequest) (IngestStats, error)

// CommitResult summarizes a successful commit.
type CommitResult struct {
	Rows         int         `json:"rows"`
	ValidateOnly bool        `json:"validateOnly"`
	Stats        IngestStats `json:"stats"`
}

// Session holds the state of one import.
type Session struct {
	id       string
	schema   *Schema
	matcher  Matcher
	stage    Stage
	fileName string
	table    *ParsedTable
	mapping  FieldMapping
	options  ImportOptions
	errors   []ValidationError

	createdAt time.Time
	updatedAt time.Time
}

// SessionOption configures a new Session.
type SessionOption func(*Session)

// WithMatcher sets the matcher used for auto-mapping on upload.
func WithMatcher(m Matcher) SessionOption {
	return func(s *Session) { s.matcher = m }
}

// WithID sets the session ID instead of generating one.
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession starts an import for schema in the upload stage.
func NewSession(schema *Schema, opts ...SessionOption) *Session {
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		schema:    schema,
		matcher:   DefaultMatcher(),
		stage:     StageUpload,
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) Schema() *Schema { return s.schema }
func (s *Session) Entity() string { return s.schema.Entity }
func (s *Session) Stage() Stage { return s.stage }
func (s *Session) FileName() string { return s.fileName }
func (s *Session) Table() *ParsedTable { return s.table }
func (s *Session) Options() ImportOptions { return s.options }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) Matcher() Matcher { return s.matcher }

// Mapping returns a copy of the current mapping.
func (s *Session) Mapping() FieldMapping { return s.mapping.Clone() }

// Errors returns the validation errors from the last Validate call.
func (s *Session) Errors() []ValidationError {
	out := make([]ValidationError, len(s.errors))
	copy(out, s.errors)
	return out
}

// RowCount is the number of data rows that would be imported.
func (s *Session) RowCount() int {
	if s.table == nil {
		return 0
	}
	return len(s.workingTable().Rows)
}

// Load parses an uploaded file and moves to the mapping stage.
// A parse failure leaves the session in upload.
func (s *Session) Load(name string, data []byte) error {
	if err := s.expect("load", StageUpload); err != nil {
		return err
	}
	table, err := ParseFile(name, data)
	if err != nil {
		return err
	}
	return s.loadTable(name, table)
}

// LoadTable moves an already parsed table into the mapping stage.
func (s *Session) LoadTable(name string, table *ParsedTable) error {
	if err := s.expect("load", StageUpload); err != nil {
		return err
	}
	return s.loadTable(name, table)
}

func (s *Session) loadTable(name string, table *ParsedTable) error {
	s.fileName = name
	s.table = table
	s.mapping = s.matcher.Map(table.Headers, s.schema)
	s.errors = nil
	s.stage = StageMapping
	s.touch()
	return nil
}

// SetTarget maps every column with header text to field (Skip to ignore).
func (s *Session) SetTarget(header, field string) error {
	if err := s.expect("set mapping", StageMapping); err != nil {
		return err
	}
	if err := s.checkTarget(header, field); err != nil {
		return err
	}
	s.mapping.Set(header, field)
	s.touch()
	return nil
}

// SetMapping applies header -> field assignments. Headers not named keep
// their current target. Nothing is applied if any entry is invalid.
func (s *Session) SetMapping(targets map[string]string) error {
	if err := s.expect("set mapping", StageMapping); err != nil {
		return err
	}
	for header, field := range targets {
		if err := s.checkTarget(header, field); err != nil {
			return err
		}
	}
	for header, field := range targets {
		s.mapping.Set(header, field)
	}
	s.touch()
	return nil
}

func (s *Session) checkTarget(header, field string) error {
	if field != Skip {
		if _, ok := s.schema.Field(field); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}
	for _, c := range s.mapping {
		if c.Header == header {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownColumn, header)
}

// SetOptions replaces the import options. Allowed before validation only.
func (s *Session) SetOptions(opts ImportOptions) error {
	if err := s.expect("set options", StageUpload, StageMapping); err != nil {
		return err
	}
	s.options = opts
	s.touch()
	return nil
}

// MissingRequired returns required fields no column targets.
func (s *Session) MissingRequired() []SchemaField {
	return missingRequired(s.schema, s.mapping)
}

// RequiredFieldsMapped reports whether every required field is targeted.
func (s *Session) RequiredFieldsMapped() bool {
	return len(s.MissingRequired()) == 0
}

// Validate checks the mapping gate and validates every row, moving to the
// validation stage. Calling it again in validation recomputes the errors.
func (s *Session) Validate() ([]ValidationError, error) {
	if err := s.expect("validate", StageMapping, StageValidation); err != nil {
		return nil, err
	}

	if missing := s.MissingRequired(); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, f := range missing {
			labels[i] = f.Label
		}
		return nil, fmt.Errorf("%w: %s", ErrRequiredUnmapped, strings.Join(labels, ", "))
	}
	if dups := s.mapping.Duplicates(); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, strings.Join(dups, ", "))
	}

	s.errors = Validate(s.workingTable(), s.mapping, s.schema)
	s.stage = StageValidation
	s.touch()
	return s.Errors(), nil
}

// BackToMapping discards validation errors and returns to mapping.
func (s *Session) BackToMapping() error {
	if err := s.expect("back to mapping", StageValidation); err != nil {
		return err
	}
	s.errors = nil
	s.stage = StageMapping
	s.touch()
	return nil
}

// Preview materializes up to limit rows without committing.
// limit <= 0 returns every row.
func (s *Session) Preview(limit int) ([]Record, error) {
	if err := s.expect("preview", StageValidation); err != nil {
		return nil, err
	}
	t := s.workingTable()
	if limit > 0 && limit < len(t.Rows) {
		t = &ParsedTable{Headers: t.Headers, Rows: t.Rows[:limit]}
	}
	return Materialize(t, s.mapping, s.schema), nil
}

// Commit materializes all rows and passes them to ingest in one call.
// Requires the validation stage with zero errors. With ValidateOnly set,
// ingest is never called. An ingest failure keeps the session in
// validation so the caller may retry.
func (s *Session) Commit(ctx context.Context, ingest IngestFunc) (CommitResult, error) {
	if err := s.expect("commit", StageValidation); err != nil {
		return CommitResult{}, err
	}
	if len(s.errors) > 0 {
		return CommitResult{}, fmt.Errorf("%w: %d errors", ErrValidationFailed, len(s.errors))
	}

	records := Materialize(s.workingTable(), s.mapping, s.schema)
	result := CommitResult{Rows: len(records), ValidateOnly: s.options.ValidateOnly}

	if !s.options.ValidateOnly && ingest != nil {
		stats, err := ingest(ctx, IngestRequest{
			SessionID:      s.id,
			Entity:         s.schema.Entity,
			KeyField:       s.schema.KeyField,
			Records:        records,
			UpdateExisting: s.options.UpdateExisting,
		})
		if err != nil {
			return CommitResult{}, fmt.Errorf("ingest %s: %w", s.schema.Entity, err)
		}
		result.Stats = stats
	}

	s.stage = StageComplete
	s.touch()
	return result, nil
}

// Cancel discards the file, mapping, errors and options and returns to a
// fresh upload stage. The session ID is kept.
func (s *Session) Cancel() {
	s.stage = StageUpload
	s.fileName = ""
	s.table = nil
	s.mapping = nil
	s.options = ImportOptions{}
	s.errors = nil
	s.touch()
}

// workingTable is the table rows are validated and committed from.
func (s *Session) workingTable() *ParsedTable {
	if s.options.SkipFirstRow {
		return s.table.dropFirstRow()
	}
	return s.table
}

func (s *Session) expect(op string, stages ...Stage) error {
	for _, st := range stages {
		if s.stage == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s stage", ErrInvalidTransition, op, s.stage)
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

// sessionSnapshot is the stored form of a Session.
type sessionSnapshot struct {
	ID        string            `json:"id"`
	Entity    string            `json:"entity"`
	Stage     Stage             `json:"stage"`
	FileName  string            `json:"fileName,omitempty"`
	Table     *ParsedTable      `json:"table,omitempty"`
	Mapping   FieldMapping      `json:"mapping,omitempty"`
	Options   ImportOptions     `json:"options"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Threshold float64           `json:"threshold"`
	Strategy  Strategy          `json:"strategy"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// MarshalJSON stores the full session state.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionSnapshot{
		ID:        s.id,
		Entity:    s.schema.Entity,
		Stage:     s.stage,
		FileName:  s.fileName,
		Table:     s.table,
		Mapping:   s.mapping,
		Options:   s.options,
		Errors:    s.errors,
		Threshold: s.matcher.Threshold,
		Strategy:  s.matcher.Strategy,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	})
}

// RestoreSession rebuilds a session from MarshalJSON output. The schema is
// looked up in the registry by entity.
func RestoreSession(data []byte) (*Session, error) {
	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	schema, err := Lookup(snap.Entity)
	if err != nil {
		return nil, err
	}

	switch snap.Stage {
	case StageUpload, StageMapping, StageValidation, StageComplete:
	default:
		return nil, fmt.Errorf("decode session %s: unknown stage %q", snap.ID, snap.Stage)
	}
	if snap.Stage != StageUpload && snap.Table == nil {
		return nil, fmt.Errorf("decode session %s: %s stage without a table", snap.ID, snap.Stage)
	}

	return &Session{
		id:        snap.ID,
		schema:    schema,
		matcher:   Matcher{Threshold: snap.Threshold, Strategy: snap.Strategy},
		stage:     snap.Stage,
		fileName:  snap.FileName,
		table:     snap.Table,
		mapping:   snap.Mapping,
		options:   snap.Options,
		errors:    snap.Errors,
		createdAt: snap.CreatedAt,
		updatedAt: snap.UpdatedAt,
	}, nil
}
