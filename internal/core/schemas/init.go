// Package schemas registers the manufacturing entity schemas with the core
// registry. Import it for side effects to make them available to Lookup.
package schemas

// Each file uses init() to register its schemas.
