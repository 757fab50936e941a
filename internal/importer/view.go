package importer

import (
	"context"
	"strings"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
)

// sampleLimit is the number of example values shown per column.
const sampleLimit = 3

// View is the client-facing state of a session.
type View struct {
	ID              string                 `json:"id"`
	Entity          string                 `json:"entity"`
	Stage           core.Stage             `json:"stage"`
	FileName        string                 `json:"fileName,omitempty"`
	RowCount        int                    `json:"rowCount"`
	Columns         []ColumnView           `json:"columns,omitempty"`
	MissingRequired []string               `json:"missingRequired,omitempty"` // Labels
	Duplicates      []string               `json:"duplicates,omitempty"`      // Field keys
	Presets         []core.PresetMatch     `json:"presets,omitempty"`         // Mapping stage only
	CanValidate     bool                   `json:"canValidate"`
	Options         core.ImportOptions     `json:"options"`
	Errors          []core.ValidationError `json:"errors,omitempty"`
	ErrorCount      int                    `json:"errorCount"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// ColumnView is one CSV column with its current target and ranked
// alternatives.
type ColumnView struct {
	core.ColumnMapping
	Samples     []string         `json:"samples,omitempty"`
	Suggestions []core.Candidate `json:"suggestions,omitempty"`
}

func (s *Service) view(ctx context.Context, sess *core.Session) View {
	v := View{
		ID:        sess.ID(),
		Entity:    sess.Entity(),
		Stage:     sess.Stage(),
		FileName:  sess.FileName(),
		Options:   sess.Options(),
		CreatedAt: sess.CreatedAt(),
		UpdatedAt: sess.UpdatedAt(),
	}
	if sess.Table() == nil {
		return v
	}

	v.RowCount = sess.RowCount()
	v.Errors = sess.Errors()
	v.ErrorCount = len(v.Errors)

	schema := sess.Schema()
	mapping := sess.Mapping()
	for _, c := range mapping {
		v.Columns = append(v.Columns, ColumnView{
			ColumnMapping: c,
			Samples:       samples(sess.Table(), c.Column),
			Suggestions:   sess.Matcher().Suggest(c.Header, schema, suggestionLimit),
		})
	}
	for _, f := range sess.MissingRequired() {
		v.MissingRequired = append(v.MissingRequired, f.Label)
	}
	v.Duplicates = mapping.Duplicates()
	v.CanValidate = len(v.MissingRequired) == 0 && len(v.Duplicates) == 0
	if v.Stage == core.StageMapping {
		v.Presets = s.matchingPresets(ctx, sess)
	}
	return v
}

// samples returns the first non-blank values of column col.
func samples(t *core.ParsedTable, col int) []string {
	var out []string
	for i := range t.Rows {
		if len(out) == sampleLimit {
			break
		}
		if v := strings.TrimSpace(t.Cell(i, col)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
