package core

// presets.go holds saved mappings. A Preset remembers the header -> field
// assignments a user made for one file layout so the next file with the same
// columns can be mapped in one step. Presets are ranked against a new file by
// how many of their headers it carries.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PresetMatchThreshold is the minimum header overlap for a preset to be
// offered for a file.
const PresetMatchThreshold = 0.5

// Preset errors.
var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetExists   = errors.New("preset already exists")
	ErrPresetInvalid  = errors.New("invalid preset")
)

// Preset is a saved mapping for one entity.
type Preset struct {
	ID        string            `json:"id"`
	Entity    string            `json:"entity"`
	Name      string            `json:"name"`
	Mapping   map[string]string `json:"mapping"` // Header -> field key; Skip entries omitted
	Headers   []string          `json:"headers"` // Headers of the file it was saved from
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// PresetMatch is a preset ranked against a file's headers.
type PresetMatch struct {
	Preset Preset  `json:"preset"`
	Score  float64 `json:"score"`
}

// NewPreset captures mapping as a preset named name.
func NewPreset(schema *Schema, name string, mapping FieldMapping) (*Preset, error) {
	p := &Preset{
		Entity:  schema.Entity,
		Name:    strings.TrimSpace(name),
		Mapping: make(map[string]string),
	}
	seen := make(map[string]bool)
	for _, c := range mapping {
		if !seen[c.Header] {
			p.Headers = append(p.Headers, c.Header)
			seen[c.Header] = true
		}
		if _, ok := p.Mapping[c.Header]; !ok && c.Field != Skip {
			p.Mapping[c.Header] = c.Field
		}
	}
	if err := p.Validate(schema); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the preset against schema.
func (p *Preset) Validate(schema *Schema) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrPresetInvalid)
	}
	if p.Entity != schema.Entity {
		return fmt.Errorf("%w: preset is for %s, not %s", ErrPresetInvalid, p.Entity, schema.Entity)
	}
	if len(p.Mapping) == 0 {
		return fmt.Errorf("%w: no columns are mapped", ErrPresetInvalid)
	}
	headers := make(map[string]bool, len(p.Headers))
	for _, h := range p.Headers {
		headers[h] = true
	}
	for header, field := range p.Mapping {
		if _, ok := schema.Field(field); !ok {
			return fmt.Errorf("%w: %q -> %q", ErrUnknownField, header, field)
		}
		if !headers[header] {
			return fmt.Errorf("%w: mapped header %q is not in headers", ErrPresetInvalid, header)
		}
	}
	return nil
}

// HeaderOverlap is the share of presetHeaders present in headers, compared
// by normalized name.
func HeaderOverlap(headers, presetHeaders []string) float64 {
	if len(presetHeaders) == 0 {
		return 0
	}

	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[NormalizeName(h)] = true
	}

	matched := 0
	for _, h := range presetHeaders {
		if have[NormalizeName(h)] {
			matched++
		}
	}
	return float64(matched) / float64(len(presetHeaders))
}

// RankPresets returns the presets whose overlap with headers reaches
// PresetMatchThreshold, best first.
func RankPresets(headers []string, presets []Preset) []PresetMatch {
	var out []PresetMatch
	for _, p := range presets {
		if score := HeaderOverlap(headers, p.Headers); score >= PresetMatchThreshold {
			out = append(out, PresetMatch{Preset: p, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ApplyPreset maps the session's columns from p. A column whose header the
// preset was saved with gets the preset's target, or Skip if the preset
// skipped it; other columns keep their current target. Headers are matched
// exactly, then by normalized name. Nothing is applied if p does not fit
// the schema.
func (s *Session) ApplyPreset(p *Preset) error {
	if err := s.expect("apply preset", StageMapping); err != nil {
		return err
	}
	if err := p.Validate(s.schema); err != nil {
		return err
	}

	exact := make(map[string]string, len(p.Headers))
	byNorm := make(map[string]string, len(p.Headers))
	for _, h := range p.Headers {
		exact[h] = p.Mapping[h]
		if _, ok := byNorm[NormalizeName(h)]; !ok {
			byNorm[NormalizeName(h)] = p.Mapping[h]
		}
	}

	for i, c := range s.mapping {
		if field, ok := exact[c.Header]; ok {
			s.mapping[i].Field = field
		} else if field, ok := byNorm[NormalizeName(c.Header)]; ok {
			s.mapping[i].Field = field
		}
	}
	s.touch()
	return nil
}
