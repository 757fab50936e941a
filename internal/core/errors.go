package core

import "errors"

// Input errors. These keep a session in the upload stage.
var (
	ErrEmptyInput          = errors.New("empty file")
	ErrInvalidCSV          = errors.New("invalid csv")
	ErrUnsupportedEncoding = errors.New("encoding error")
	ErrFileTooLarge        = errors.New("file too large")
)

// Mapping errors. These block the mapping -> validation transition.
var (
	ErrRequiredUnmapped = errors.New("required fields not mapped")
	ErrDuplicateTarget  = errors.New("field mapped from more than one column")
	ErrUnknownField     = errors.New("unknown schema field")
	ErrUnknownColumn    = errors.New("unknown column")
)

// Session and registry errors.
var (
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrValidationFailed  = errors.New("validation errors present")
	ErrUnknownSchema     = errors.New("unknown schema")
)
