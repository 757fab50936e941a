package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "required unmapped maps correctly",
			err:         fmt.Errorf("%w: Process Name", ErrRequiredUnmapped),
			wantCode:    "MAP001",
			wantMessage: "Some required fields have no column mapped",
		},
		{
			name:        "duplicate target maps correctly",
			err:         fmt.Errorf("%w: name", ErrDuplicateTarget),
			wantCode:    "MAP002",
			wantMessage: "Two columns are mapped to the same field",
		},
		{
			name:        "unknown field is not taken for unknown schema",
			err:         ErrUnknownField,
			wantCode:    "MAP003",
			wantMessage: "The mapping names a field that does not exist",
		},
		{
			name:        "unknown schema maps correctly",
			err:         fmt.Errorf("%w: widgets", ErrUnknownSchema),
			wantCode:    "SES003",
			wantMessage: "Unknown import type",
		},
		{
			name:        "preset name wins over words inside it",
			err:         fmt.Errorf("%w: %q for processes", ErrPresetExists, "timeout fixes"),
			wantCode:    "PRE002",
			wantMessage: "A saved mapping with this name already exists",
		},
		{
			name:        "preset not found maps correctly",
			err:         fmt.Errorf("%w: abc", ErrPresetNotFound),
			wantCode:    "PRE001",
			wantMessage: "Saved mapping not found",
		},
		{
			name:        "validation failed maps correctly",
			err:         ErrValidationFailed,
			wantCode:    "VAL001",
			wantMessage: "The file has validation errors",
		},
		{
			name:        "empty file maps correctly",
			err:         ErrEmptyInput,
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "invalid csv maps correctly",
			err:         fmt.Errorf("%w: record on line 3: wrong number of fields", ErrInvalidCSV),
			wantCode:    "FILE002",
			wantMessage: "File is not a valid CSV or XLSX file",
		},
		{
			name:        "transition maps correctly",
			err:         fmt.Errorf("%w: commit from mapping", ErrInvalidTransition),
			wantCode:    "SES001",
			wantMessage: "That step is not available right now",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "sqlite lock maps correctly",
			err:         errors.New("database is locked"),
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "bad request body maps correctly",
			err:         errors.New("invalid request body: unexpected EOF"),
			wantCode:    "REQ001",
			wantMessage: "The request could not be read",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("EMPTY FILE"),
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_ValidationMessages(t *testing.T) {
	tests := []struct {
		msg      string
		wantCode string
	}{
		{MsgRequired, "VAL002"},
		{MsgNumber, "VAL003"},
		{MsgEmail, "VAL004"},
		{msgSelect + "a, b", "VAL005"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			ve := ValidationError{RowIndex: 1, FieldLabel: "X", Message: tt.msg}
			if got := MapError(ve).Code; got != tt.wantCode {
				t.Errorf("MapError(%q) code = %q, want %q", tt.msg, got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrEmptyInput)

	expected := "The uploaded file is empty (Code: FILE005). Please upload a CSV file with a header row"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrDuplicateTarget,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("load: %w", ErrEmptyInput)
		userErr := NewUserError(techErr)

		if userErr.Error() != "The uploaded file is empty" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrEmptyInput) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
