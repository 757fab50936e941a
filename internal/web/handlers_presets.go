package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/JonMunkholm/fieldmap/internal/importer"
	"github.com/go-chi/chi/v5"
)

type savePresetRequest struct {
	Name string `json:"name"`
}

// handleListPresets returns the saved mappings for an entity. With
// ?headers=a,b only presets matching those headers are returned, best
// match first.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	var headers []string
	if raw := r.URL.Query().Get("headers"); raw != "" {
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				headers = append(headers, h)
			}
		}
	}

	matches, err := s.imports.ListPresets(r.Context(), chi.URLParam(r, "entity"), headers)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if matches == nil {
		matches = []core.PresetMatch{}
	}
	writeJSON(w, matches)
}

// handleCreatePreset saves a mapping sent by the client.
func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var in importer.PresetInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	preset, err := s.imports.CreatePreset(r.Context(), chi.URLParam(r, "entity"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, preset, http.StatusCreated)
}

// handleGetPreset returns one preset.
func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.imports.GetPreset(r.Context(), chi.URLParam(r, "presetID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, preset)
}

// handleUpdatePreset replaces a preset's name and mapping.
func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	var in importer.PresetInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	preset, err := s.imports.UpdatePreset(r.Context(), chi.URLParam(r, "presetID"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, preset)
}

// handleDeletePreset removes a preset.
func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.imports.DeletePreset(r.Context(), chi.URLParam(r, "presetID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSavePreset stores the session's current mapping under a name.
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	preset, err := s.imports.SavePreset(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, preset, http.StatusCreated)
}

// handleApplyPreset maps the session's columns from a preset.
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	view, err := s.imports.ApplyPreset(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "presetID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}
