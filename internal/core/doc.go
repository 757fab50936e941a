// Package core provides the CSV import and field-mapping engine.
//
// This package holds all domain logic independent of any transport or storage
// layer. It is used by the HTTP API, the CLI, and tests without modification.
//
// # Pipeline
//
// Data flows strictly forward and every stage returns a new value:
//
//  1. [Parse] turns raw text into a [ParsedTable] (headers + rows)
//  2. [AutoMap] proposes a [FieldMapping] from CSV headers to schema fields
//     using [Similarity] scoring
//  3. [Validate] checks mapped cells against the schema and returns every
//     [ValidationError] at once
//  4. [Materialize] coerces cells into typed [Record] values
//
// # Sessions
//
// A [Session] drives the four-stage workflow (upload, mapping, validation,
// complete) and is the only mutator of mapping and validation state:
//
//	s := core.NewSession(schema)
//	if err := s.Load("materials.csv", data); err != nil {
//	    // still in the upload stage; pick another file
//	}
//	s.SetTarget("Mat. Grade", "grade")
//	errs, err := s.Validate()
//	...
//	res, err := s.Commit(ctx, ingest)
//
// # Schema Registry
//
// Entity schemas are registered at init time using [Register], the same way
// the schemas package registers processes, materials, finishes, routings and
// customers.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE005: File errors (size, format, encoding, empty)
//   - MAP001-MAP003: Mapping errors (required fields, duplicates, unknown fields)
//   - VAL001: Per-cell validation errors are present
//   - SES001-SES002: Session errors (not found, wrong stage)
//   - IMP001-IMP002: Ingestion errors (busy, sink failure)
package core
