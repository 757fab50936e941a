package web

import (
	"net/http"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/go-chi/chi/v5"
)

// defaultPreviewRows is the preview size when ?limit is absent.
const defaultPreviewRows = 10

type createSessionRequest struct {
	Entity string `json:"entity"`
}

type previewResponse struct {
	Records []core.Record `json:"records"`
}

// handleCreateSession starts a session for an entity.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.imports.Create(r.Context(), req.Entity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, view, http.StatusCreated)
}

// handleGetSession returns the session view.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.imports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleUploadFile loads a CSV or XLSX file into the session.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, s.maxFileSize)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.imports.Upload(r.Context(), chi.URLParam(r, "id"), name, data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleSetMapping applies {header: field} assignments.
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var targets map[string]string
	if err := decodeJSON(w, r, &targets); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.imports.SetMapping(r.Context(), chi.URLParam(r, "id"), targets)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleSetOptions replaces the import options.
func (s *Server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	var opts core.ImportOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.imports.SetOptions(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleValidate runs validation. Row errors are returned in the view
// with status 200.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	view, err := s.imports.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handleBackToMapping returns to the mapping stage.
func (s *Server) handleBackToMapping(w http.ResponseWriter, r *http.Request) {
	view, err := s.imports.BackToMapping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// handlePreview returns the first ?limit materialized records.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultPreviewRows)

	records, err := s.imports.Preview(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, previewResponse{Records: records})
}

// handleCommit sends the records to the sink.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.imports.Commit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleCancel resets the session to the upload stage. With ?discard=true
// the session is removed instead.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("discard") == "true" {
		if err := s.imports.Discard(r.Context(), id); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	view, err := s.imports.Cancel(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}
