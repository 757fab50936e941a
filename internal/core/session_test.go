package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// recordingIngest captures every call made to it.
type recordingIngest struct {
	calls []IngestRequest
	err   error
}

func (r *recordingIngest) ingest(_ context.Context, req IngestRequest) (IngestStats, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return IngestStats{}, r.err
	}
	return IngestStats{Inserted: len(req.Records)}, nil
}

func TestSession_EndToEnd(t *testing.T) {
	s := NewSession(rateSchema())
	if s.Stage() != StageUpload {
		t.Fatalf("new session stage = %s, want upload", s.Stage())
	}

	if err := s.Load("processes.csv", []byte("Name,Rate\nCNC Milling,85\nCNC Turning,75")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Stage() != StageMapping {
		t.Fatalf("stage after Load = %s, want mapping", s.Stage())
	}

	mapping := s.Mapping()
	if mapping.Target("Name") != "name" || mapping.Target("Rate") != "hourlyRate" {
		t.Fatalf("auto mapping = %+v, want Name->name, Rate->hourlyRate", mapping)
	}

	errs, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}

	preview, err := s.Preview(1)
	if err != nil || len(preview) != 1 {
		t.Fatalf("Preview(1) = %d records, %v; want 1 record", len(preview), err)
	}

	rec := &recordingIngest{}
	result, err := s.Commit(context.Background(), rec.ingest)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("ingest called %d times, want exactly 1", len(rec.calls))
	}
	if result.Rows != 2 || result.Stats.Inserted != 2 {
		t.Errorf("Commit() = %+v, want 2 rows inserted", result)
	}
	if s.Stage() != StageComplete {
		t.Errorf("stage after Commit = %s, want complete", s.Stage())
	}

	call := rec.calls[0]
	if call.SessionID != s.ID() || call.Entity != "processes" {
		t.Errorf("ingest request = %+v, want session %s entity processes", call, s.ID())
	}
	want := []Record{
		{"name": TextValue("CNC Milling"), "hourlyRate": NumberValue(decimal.NewFromInt(85))},
		{"name": TextValue("CNC Turning"), "hourlyRate": NumberValue(decimal.NewFromInt(75))},
	}
	if len(call.Records) != len(want) {
		t.Fatalf("ingested %d records, want %d", len(call.Records), len(want))
	}
	for i := range want {
		assertRecord(t, i, call.Records[i], want[i])
	}
}

func TestSession_LoadEmptyStaysInUpload(t *testing.T) {
	s := NewSession(rateSchema())

	err := s.Load("empty.csv", []byte("  \n\n"))
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Load() error = %v, want ErrEmptyInput", err)
	}
	if s.Stage() != StageUpload {
		t.Errorf("stage = %s, want upload", s.Stage())
	}

	if err := s.Load("ok.csv", []byte("Name,Rate\nA,1")); err != nil {
		t.Errorf("Load() after failure error = %v", err)
	}
}

func TestSession_RequiredGate(t *testing.T) {
	s := NewSession(processSchema())
	if err := s.Load("p.csv", []byte("Process Name,Notes\nMilling,x\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.RequiredFieldsMapped() {
		t.Fatal("RequiredFieldsMapped() = true, want false (Hourly Rate unmapped)")
	}
	missing := s.MissingRequired()
	if len(missing) != 1 || missing[0].Key != "hourlyRate" {
		t.Errorf("MissingRequired() = %+v, want [hourlyRate]", missing)
	}

	_, err := s.Validate()
	if !errors.Is(err, ErrRequiredUnmapped) {
		t.Fatalf("Validate() error = %v, want ErrRequiredUnmapped", err)
	}
	if s.Stage() != StageMapping {
		t.Errorf("stage = %s, want mapping", s.Stage())
	}

	if err := s.SetTarget("Notes", "hourlyRate"); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if !s.RequiredFieldsMapped() {
		t.Error("RequiredFieldsMapped() = false after mapping Notes")
	}
}

func TestSession_DuplicateTargetGate(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Process,Rate\nA,B,1\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.SetMapping(map[string]string{"Name": "name", "Process": "name"}); err != nil {
		t.Fatalf("SetMapping() error = %v", err)
	}

	_, err := s.Validate()
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("Validate() error = %v, want ErrDuplicateTarget", err)
	}

	if err := s.SetTarget("Process", Skip); err != nil {
		t.Fatalf("SetTarget(Skip) error = %v", err)
	}
	if _, err := s.Validate(); err != nil {
		t.Errorf("Validate() after skip error = %v", err)
	}
}

func TestSession_SetMappingRejectsUnknown(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Rate\nA,1\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err := s.SetMapping(map[string]string{"Name": "name", "Rate": "price"})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("SetMapping(unknown field) error = %v, want ErrUnknownField", err)
	}
	if err := s.SetTarget("Cost", "hourlyRate"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("SetTarget(unknown column) error = %v, want ErrUnknownColumn", err)
	}
	if got := s.Mapping().Target("Rate"); got != "hourlyRate" {
		t.Errorf("failed SetMapping changed Rate to %q", got)
	}
}

func TestSession_ValidationErrorsBlockCommit(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Rate\nMilling,abc\n,75\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	errs, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("Validate() = %d errors, want 2", len(errs))
	}

	rec := &recordingIngest{}
	if _, err := s.Commit(context.Background(), rec.ingest); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Commit() error = %v, want ErrValidationFailed", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("ingest called %d times, want 0", len(rec.calls))
	}
	if s.Stage() != StageValidation {
		t.Errorf("stage = %s, want validation", s.Stage())
	}
}

func TestSession_ValidateOnlyNeverIngests(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.SetOptions(ImportOptions{ValidateOnly: true}); err != nil {
		t.Fatalf("SetOptions() error = %v", err)
	}
	if err := s.Load("p.csv", []byte("Name,Rate\nA,1\nB,2\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if errs, err := s.Validate(); err != nil || len(errs) != 0 {
		t.Fatalf("Validate() = %v, %v; want clean", errs, err)
	}

	rec := &recordingIngest{}
	result, err := s.Commit(context.Background(), rec.ingest)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("ingest called %d times with ValidateOnly, want 0", len(rec.calls))
	}
	if !result.ValidateOnly || result.Rows != 2 {
		t.Errorf("Commit() = %+v, want ValidateOnly with 2 rows", result)
	}
}

func TestSession_IngestFailureKeepsValidation(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Rate\nA,1\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	sinkErr := errors.New("connection refused")
	rec := &recordingIngest{err: sinkErr}
	if _, err := s.Commit(context.Background(), rec.ingest); !errors.Is(err, sinkErr) {
		t.Fatalf("Commit() error = %v, want wrapped sink error", err)
	}
	if s.Stage() != StageValidation {
		t.Errorf("stage = %s, want validation", s.Stage())
	}

	rec.err = nil
	if _, err := s.Commit(context.Background(), rec.ingest); err != nil {
		t.Errorf("retry Commit() error = %v", err)
	}
	if len(rec.calls) != 2 {
		t.Errorf("ingest calls = %d, want 2", len(rec.calls))
	}
}

func TestSession_BackToMapping(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Rate\nMilling,abc\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if errs, _ := s.Validate(); len(errs) != 1 {
		t.Fatalf("Validate() = %d errors, want 1", len(errs))
	}

	if err := s.BackToMapping(); err != nil {
		t.Fatalf("BackToMapping() error = %v", err)
	}
	if s.Stage() != StageMapping {
		t.Errorf("stage = %s, want mapping", s.Stage())
	}
	if len(s.Errors()) != 0 {
		t.Errorf("Errors() = %v, want discarded", s.Errors())
	}
	if err := s.BackToMapping(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BackToMapping() from mapping error = %v, want ErrInvalidTransition", err)
	}
}

func TestSession_SkipFirstRow(t *testing.T) {
	s := NewSession(rateSchema())
	if err := s.Load("p.csv", []byte("Name,Rate\nexample,not-a-number\nMilling,85\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.SetOptions(ImportOptions{SkipFirstRow: true}); err != nil {
		t.Fatalf("SetOptions() error = %v", err)
	}

	errs, err := s.Validate()
	if err != nil || len(errs) != 0 {
		t.Fatalf("Validate() = %v, %v; want first row skipped", errs, err)
	}
	if s.RowCount() != 1 {
		t.Errorf("RowCount() = %d, want 1", s.RowCount())
	}
	if err := s.SetOptions(ImportOptions{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetOptions() in validation error = %v, want ErrInvalidTransition", err)
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewSession(rateSchema())

	if _, err := s.Validate(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Validate() in upload error = %v", err)
	}
	if _, err := s.Commit(ctx, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Commit() in upload error = %v", err)
	}
	if _, err := s.Preview(5); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Preview() in upload error = %v", err)
	}
	if err := s.SetTarget("Name", "name"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetTarget() in upload error = %v", err)
	}

	if err := s.Load("p.csv", []byte("Name,Rate\nA,1\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.Load("p.csv", []byte("Name,Rate\nA,1\n")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Load() error = %v", err)
	}
	if _, err := s.Commit(ctx, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Commit() in mapping error = %v", err)
	}
}

func TestSession_CancelResets(t *testing.T) {
	s := NewSession(rateSchema())
	id := s.ID()
	_ = s.SetOptions(ImportOptions{UpdateExisting: true})
	if err := s.Load("p.csv", []byte("Name,Rate\nA,x\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	s.Cancel()

	if s.Stage() != StageUpload {
		t.Errorf("stage = %s, want upload", s.Stage())
	}
	if s.ID() != id {
		t.Errorf("ID changed from %s to %s", id, s.ID())
	}
	if s.Table() != nil || len(s.Mapping()) != 0 || len(s.Errors()) != 0 {
		t.Error("Cancel() kept table, mapping or errors")
	}
	if s.Options() != (ImportOptions{}) {
		t.Errorf("Options() = %+v, want zero", s.Options())
	}
	if s.FileName() != "" || s.RowCount() != 0 {
		t.Errorf("FileName/RowCount = %q/%d, want empty", s.FileName(), s.RowCount())
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	Clear()
	t.Cleanup(Clear)
	Register(processSchema())

	s := NewSession(processSchema(), WithMatcher(Matcher{Threshold: 0.7, Strategy: StrategyBijective}))
	if err := s.Load("p.csv", []byte("Process Name,Hourly Rate\nMilling,abc\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := RestoreSession(data)
	if err != nil {
		t.Fatalf("RestoreSession() error = %v", err)
	}

	if got.ID() != s.ID() || got.Stage() != StageValidation || got.Entity() != "processes" {
		t.Errorf("restored %s/%s/%s, want %s/validation/processes", got.ID(), got.Stage(), got.Entity(), s.ID())
	}
	if len(got.Errors()) != 1 || got.Errors()[0].RawValue != "abc" {
		t.Errorf("restored errors = %+v", got.Errors())
	}
	if got.Mapping().Target("Hourly Rate") != "hourlyRate" {
		t.Errorf("restored mapping = %+v", got.Mapping())
	}
	if got.matcher.Strategy != StrategyBijective || got.matcher.Threshold != 0.7 {
		t.Errorf("restored matcher = %+v", got.matcher)
	}
	if err := got.BackToMapping(); err != nil {
		t.Errorf("BackToMapping() on restored session error = %v", err)
	}
}

func TestRestoreSession_UnknownEntity(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	_, err := RestoreSession([]byte(`{"id":"x","entity":"widgets","stage":"upload"}`))
	if !errors.Is(err, ErrUnknownSchema) {
		t.Errorf("RestoreSession() error = %v, want ErrUnknownSchema", err)
	}
}
