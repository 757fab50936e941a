package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleListSchemas returns every registered schema.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, core.Schemas())
}

// handleGetSchema returns one schema.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, schema)
}

// handleDownloadTemplate serves a header-only template as CSV (default)
// or XLSX.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var (
		data        []byte
		ext         string
		contentType string
	)
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		data, err = core.TemplateCSV(schema)
		ext, contentType = "csv", "text/csv; charset=utf-8"
	case "xlsx":
		data, err = core.TemplateXLSX(schema)
		ext, contentType = "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		respondError(w, r, fmt.Errorf("%w: unknown template format %q", errBadRequest, r.URL.Query().Get("format")))
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.%s"`, schema.Entity, ext))
	w.Write(data)
}
