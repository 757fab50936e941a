// Package core provides the CSV import and field-mapping engine.
//
// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with a code users
// can quote to support staff.
//
// Error codes are grouped by category:
//
// # Preset Errors (PRE001-PRE099)
//
// Matched first because preset errors quote user-chosen names.
//
//	PRE001 - Preset not found        Patterns: "preset not found"
//	PRE002 - Preset name taken       Patterns: "preset already exists"
//	PRE003 - Preset is malformed     Patterns: "invalid preset"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Required fields not mapped
//	         Action: Map a column to every required field before validating
//	         Patterns: "required fields not mapped"
//
//	MAP002 - Two columns feed the same field
//	         Action: Set one of the columns to Skip
//	         Patterns: "mapped from more than one column"
//
//	MAP003 - Unknown field in mapping
//	         Action: Pick a field from the schema list
//	         Patterns: "unknown schema field"
//
//	MAP004 - Unknown column in mapping
//	         Action: Use the header text exactly as it appears in the file
//	         Patterns: "unknown column"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Validation errors present
//	         Action: Fix the listed rows or adjust the mapping, then validate again
//	         Patterns: "validation errors present"
//
//	VAL002 - Required field is empty
//	         Patterns: "required field is empty"
//
//	VAL003 - Invalid number
//	         Patterns: "valid number"
//
//	VAL004 - Invalid email
//	         Patterns: "valid email"
//
//	VAL005 - Value not in allowed list
//	         Patterns: "must be one of"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key            Patterns: "duplicate key"
//	DB002 - Unique constraint        Patterns: "unique constraint", "violates unique"
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout"
//	DB007 - Deadlock / locked        Patterns: "deadlock", "database is locked"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Patterns: "file too large"
//	FILE002 - Not a valid CSV        Patterns: "invalid csv"
//	FILE003 - Bad encoding           Patterns: "encoding error"
//	FILE004 - No file provided       Patterns: "no file provided"
//	FILE005 - Empty file             Patterns: "empty file"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Step not available      Patterns: "invalid stage transition"
//	SES002 - Session not found       Patterns: "session not found"
//	SES003 - Unknown entity type     Patterns: "unknown schema"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many imports        Patterns: "too many imports"
//	IMP002 - Request cancelled       Patterns: "context canceled"
//	IMP003 - Request timed out       Patterns: "context deadline exceeded"
//
// # Other
//
//	RATE001 - Too many requests      Patterns: "rate limit"
//	REQ001  - Malformed request      Patterns: "invalid request"
//	AUTH001 - Missing API key        Patterns: "unauthorized"
//	ERR000  - Fallback for anything unmatched
package core

import (
	"fmt"
	"strings"
)

// UserMessage is the user-facing form of an error.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is searched in order; the first match wins. More specific
// patterns must come before patterns they contain.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Preset Errors (PRE001-PRE003)
	// =========================================================================
	{
		pattern: "preset not found",
		msg: UserMessage{
			Message: "Saved mapping not found",
			Action:  "Refresh the list of saved mappings",
			Code:    "PRE001",
		},
	},
	{
		pattern: "preset already exists",
		msg: UserMessage{
			Message: "A saved mapping with this name already exists",
			Action:  "Choose a different name or update the existing mapping",
			Code:    "PRE002",
		},
	},
	{
		pattern: "invalid preset",
		msg: UserMessage{
			Message: "The saved mapping is incomplete",
			Action:  "Give it a name and map at least one column",
			Code:    "PRE003",
		},
	},

	// =========================================================================
	// Mapping Errors (MAP001-MAP003)
	// =========================================================================
	{
		pattern: "required fields not mapped",
		msg: UserMessage{
			Message: "Some required fields have no column mapped",
			Action:  "Map a column to every required field before validating",
			Code:    "MAP001",
		},
	},
	{
		pattern: "mapped from more than one column",
		msg: UserMessage{
			Message: "Two columns are mapped to the same field",
			Action:  "Set one of the columns to Skip",
			Code:    "MAP002",
		},
	},
	{
		pattern: "unknown schema field",
		msg: UserMessage{
			Message: "The mapping names a field that does not exist",
			Action:  "Pick a field from the schema list",
			Code:    "MAP003",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "The mapping names a column that is not in the file",
			Action:  "Use the header text exactly as it appears in the file",
			Code:    "MAP004",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL005)
	// =========================================================================
	{
		pattern: "validation errors present",
		msg: UserMessage{
			Message: "The file has validation errors",
			Action:  "Fix the listed rows or adjust the mapping, then validate again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "required field is empty",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL002",
		},
	},
	{
		pattern: "valid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use standard decimal format",
			Code:    "VAL003",
		},
	},
	{
		pattern: "valid email",
		msg: UserMessage{
			Message: "Invalid email address detected",
			Action:  "Use the form name@example.com",
			Code:    "VAL004",
		},
	},
	{
		pattern: "must be one of",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL005",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB007)
	// Raised by sinks while persisting committed records.
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Enable Update Existing or remove the duplicate rows",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV or XLSX file",
			Action:  "Export the sheet as comma-separated values and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES003)
	// =========================================================================
	{
		pattern: "invalid stage transition",
		msg: UserMessage{
			Message: "That step is not available right now",
			Action:  "Refresh the import to see its current step",
			Code:    "SES001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please start a new import",
			Code:    "SES002",
		},
	},
	{
		pattern: "unknown schema",
		msg: UserMessage{
			Message: "Unknown import type",
			Action:  "Choose one of the listed entity types",
			Code:    "SES003",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP003)
	// =========================================================================
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "IMP003",
		},
	},

	// =========================================================================
	// Transport Errors
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request body is valid JSON of the documented shape",
			Code:    "REQ001",
		},
	},
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Patterns are matched case-insensitively against err.Error(); the first
// match wins. Unmatched errors get the ERR000 fallback.
//
// Example:
//
//	msg := MapError(ErrRequiredUnmapped)
//	// msg.Code == "MAP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern, i.e. maps to
// something other than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
