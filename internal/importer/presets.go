package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/JonMunkholm/fieldmap/internal/logging"
	"github.com/google/uuid"
)

// PresetStore persists saved mappings. The database sinks implement it;
// MemoryPresets is used when no database is configured.
type PresetStore interface {
	CreatePreset(ctx context.Context, p core.Preset) error
	GetPreset(ctx context.Context, id string) (core.Preset, error)
	ListPresets(ctx context.Context, entity string) ([]core.Preset, error)
	UpdatePreset(ctx context.Context, p core.Preset) error
	DeletePreset(ctx context.Context, id string) error
}

// MemoryPresets keeps presets in process memory.
type MemoryPresets struct {
	mu      sync.RWMutex
	presets map[string]core.Preset
}

// NewMemoryPresets creates an empty preset store.
func NewMemoryPresets() *MemoryPresets {
	return &MemoryPresets{presets: make(map[string]core.Preset)}
}

func (m *MemoryPresets) CreatePreset(_ context.Context, p core.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nameTaken(p) {
		return fmt.Errorf("%w: %q for %s", core.ErrPresetExists, p.Name, p.Entity)
	}
	m.presets[p.ID] = p
	return nil
}

func (m *MemoryPresets) GetPreset(_ context.Context, id string) (core.Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.presets[id]
	if !ok {
		return core.Preset{}, fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	return p, nil
}

func (m *MemoryPresets) ListPresets(_ context.Context, entity string) ([]core.Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Preset
	for _, p := range m.presets {
		if p.Entity == entity {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryPresets) UpdatePreset(_ context.Context, p core.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.presets[p.ID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrPresetNotFound, p.ID)
	}
	if m.nameTaken(p) {
		return fmt.Errorf("%w: %q for %s", core.ErrPresetExists, p.Name, p.Entity)
	}
	p.CreatedAt = old.CreatedAt
	m.presets[p.ID] = p
	return nil
}

func (m *MemoryPresets) DeletePreset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presets[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrPresetNotFound, id)
	}
	delete(m.presets, id)
	return nil
}

// nameTaken reports whether another preset of p.Entity is named p.Name.
// Callers hold mu.
func (m *MemoryPresets) nameTaken(p core.Preset) bool {
	for _, other := range m.presets {
		if other.ID != p.ID && other.Entity == p.Entity && other.Name == p.Name {
			return true
		}
	}
	return false
}

// PresetInput is a preset as sent by a client. Empty targets are dropped;
// Headers defaults to the mapped headers.
type PresetInput struct {
	Name    string            `json:"name"`
	Mapping map[string]string `json:"mapping"`
	Headers []string          `json:"headers,omitempty"`
}

func (in PresetInput) build(entity string) core.Preset {
	p := core.Preset{
		Entity:  entity,
		Name:    strings.TrimSpace(in.Name),
		Mapping: make(map[string]string, len(in.Mapping)),
		Headers: in.Headers,
	}
	for h, f := range in.Mapping {
		if f != core.Skip {
			p.Mapping[h] = f
		}
	}
	if len(p.Headers) == 0 {
		for h := range in.Mapping {
			p.Headers = append(p.Headers, h)
		}
		sort.Strings(p.Headers)
	}
	return p
}

// CreatePreset saves a new preset for entity.
func (s *Service) CreatePreset(ctx context.Context, entity string, in PresetInput) (core.Preset, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return core.Preset{}, err
	}
	p := in.build(entity)
	if err := p.Validate(schema); err != nil {
		return core.Preset{}, err
	}
	return s.insertPreset(ctx, p)
}

// SavePreset captures the current mapping of a session as a preset.
func (s *Service) SavePreset(ctx context.Context, sessionID, name string) (core.Preset, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return core.Preset{}, err
	}
	if sess.Table() == nil {
		return core.Preset{}, fmt.Errorf("%w: save preset in %s stage", core.ErrInvalidTransition, sess.Stage())
	}

	p, err := core.NewPreset(sess.Schema(), name, sess.Mapping())
	if err != nil {
		return core.Preset{}, err
	}
	return s.insertPreset(ctx, *p)
}

func (s *Service) insertPreset(ctx context.Context, p core.Preset) (core.Preset, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.presets.CreatePreset(ctx, p); err != nil {
		return core.Preset{}, err
	}
	logging.WithFields(ctx, "preset_id", p.ID, "entity", p.Entity).Info("preset saved", "name", p.Name)
	return p, nil
}

// ListPresets returns the presets for entity. With headers set, only
// presets matching them are returned, best match first.
func (s *Service) ListPresets(ctx context.Context, entity string, headers []string) ([]core.PresetMatch, error) {
	if _, err := core.Lookup(entity); err != nil {
		return nil, err
	}
	presets, err := s.presets.ListPresets(ctx, entity)
	if err != nil {
		return nil, err
	}

	if len(headers) > 0 {
		return core.RankPresets(headers, presets), nil
	}
	out := make([]core.PresetMatch, len(presets))
	for i, p := range presets {
		out[i] = core.PresetMatch{Preset: p}
	}
	return out, nil
}

// GetPreset returns one preset.
func (s *Service) GetPreset(ctx context.Context, id string) (core.Preset, error) {
	return s.presets.GetPreset(ctx, id)
}

// UpdatePreset replaces a preset's name, mapping and headers.
func (s *Service) UpdatePreset(ctx context.Context, id string, in PresetInput) (core.Preset, error) {
	old, err := s.presets.GetPreset(ctx, id)
	if err != nil {
		return core.Preset{}, err
	}
	schema, err := core.Lookup(old.Entity)
	if err != nil {
		return core.Preset{}, err
	}

	p := in.build(old.Entity)
	p.ID = old.ID
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	if err := p.Validate(schema); err != nil {
		return core.Preset{}, err
	}
	if err := s.presets.UpdatePreset(ctx, p); err != nil {
		return core.Preset{}, err
	}
	return p, nil
}

// DeletePreset removes a preset.
func (s *Service) DeletePreset(ctx context.Context, id string) error {
	if err := s.presets.DeletePreset(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("preset deleted", "preset_id", id)
	return nil
}

// ApplyPreset maps a session's columns from a saved preset.
func (s *Service) ApplyPreset(ctx context.Context, sessionID, presetID string) (View, error) {
	p, err := s.presets.GetPreset(ctx, presetID)
	if err != nil {
		return View{}, err
	}
	return s.update(ctx, sessionID, func(sess *core.Session) error {
		if err := sess.ApplyPreset(&p); err != nil {
			return err
		}
		logger(ctx, sess).Info("preset applied", "preset_id", p.ID, "name", p.Name)
		return nil
	})
}

// matchingPresets ranks stored presets against the session's headers for
// the mapping view. Store failures leave the list empty.
func (s *Service) matchingPresets(ctx context.Context, sess *core.Session) []core.PresetMatch {
	presets, err := s.presets.ListPresets(ctx, sess.Entity())
	if err != nil {
		logger(ctx, sess).Warn("list presets failed", "error", err)
		return nil
	}
	return core.RankPresets(sess.Table().Headers, presets)
}
