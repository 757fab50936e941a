package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/fieldmap/internal/core"
)

const processesCSV = `Process Name,Category,Rate
CNC Milling,Machining,85.50
Deburr,Finishing,40
`

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestParseMappings(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", pairs: nil, want: map[string]string{}},
		{name: "target", pairs: []string{"Rate=hourlyRate"}, want: map[string]string{"Rate": "hourlyRate"}},
		{name: "skip", pairs: []string{"Notes="}, want: map[string]string{"Notes": ""}},
		{name: "header with equals", pairs: []string{"a=b=c"}, want: map[string]string{"a": "b=c"}},
		{name: "missing separator", pairs: []string{"Rate"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMappings(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMappings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseMappings() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseMappings()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("boom"), exitFailure},
		{"usage", withCode(exitUsage, errors.New("bad flag")), exitUsage},
		{"wrapped validation", errors.Join(withCode(exitValidation, core.ErrValidationFailed)), exitValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}

	if withCode(exitUsage, nil) != nil {
		t.Error("withCode(nil) should be nil")
	}
}

func TestSchemasCommand(t *testing.T) {
	out, err := execute(t, "schemas")
	if err != nil {
		t.Fatalf("schemas error = %v", err)
	}
	for _, want := range []string{"processes (Processes)", "hourlyRate", "Machining|Fabrication"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTemplateCommand(t *testing.T) {
	out, err := execute(t, "template", "processes")
	if err != nil {
		t.Fatalf("template error = %v", err)
	}
	if !strings.HasPrefix(out, "Process Name,Category,Hourly Rate") {
		t.Errorf("csv template = %q", out)
	}

	path := filepath.Join(t.TempDir(), "processes.xlsx")
	if _, err := execute(t, "template", "processes", "--format", "xlsx", "-o", path); err != nil {
		t.Fatalf("template xlsx error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("xlsx template is not a zip archive")
	}

	_, err = execute(t, "template", "processes", "--format", "pdf")
	if exitCode(err) != exitUsage {
		t.Errorf("bad format exit = %d, want %d (err %v)", exitCode(err), exitUsage, err)
	}

	_, err = execute(t, "template", "widgets")
	if !errors.Is(err, core.ErrUnknownSchema) {
		t.Errorf("unknown entity error = %v, want ErrUnknownSchema", err)
	}
}

func TestMapCommand(t *testing.T) {
	path := writeFile(t, "processes.csv", processesCSV)

	out, err := execute(t, "map", "processes", path)
	if err != nil {
		t.Fatalf("map error = %v", err)
	}
	for _, want := range []string{"Process Name", "name", "hourlyRate"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "missing required") {
		t.Errorf("unexpected missing required:\n%s", out)
	}

	out, err = execute(t, "map", "processes", path, "--map", "Rate=")
	if err != nil {
		t.Fatalf("map with override error = %v", err)
	}
	if !strings.Contains(out, "missing required: Hourly Rate") {
		t.Errorf("output should report Hourly Rate missing:\n%s", out)
	}

	out, err = execute(t, "map", "processes", path, "--map", "Category=name")
	if err != nil {
		t.Fatalf("map with duplicate error = %v", err)
	}
	if !strings.Contains(out, "mapped more than once: name") {
		t.Errorf("output should report duplicate:\n%s", out)
	}

	out, err = execute(t, "map", "processes", path, "--threshold", "0.9")
	if err != nil {
		t.Fatalf("map with threshold error = %v", err)
	}
	if !strings.Contains(out, "hourlyRate 0.76\n") && !strings.Contains(out, "hourlyRate 0.76,") {
		t.Errorf("Rate suggestion should not clear threshold 0.9:\n%s", out)
	}
	if !strings.Contains(out, "missing required: Hourly Rate") {
		t.Errorf("Rate should stay unmapped at threshold 0.9:\n%s", out)
	}

	out, _ = execute(t, "map", "processes", path)
	if !strings.Contains(out, "hourlyRate 0.76*") {
		t.Errorf("Rate suggestion should clear the default threshold:\n%s", out)
	}

	_, err = execute(t, "map", "processes", path, "--map", "Nope=name")
	if !errors.Is(err, core.ErrUnknownColumn) {
		t.Errorf("unknown column error = %v, want ErrUnknownColumn", err)
	}
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "good.csv", processesCSV)
	out, err := execute(t, "validate", "processes", good)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "2 rows valid") {
		t.Errorf("output = %q", out)
	}

	bad := writeFile(t, "bad.csv", "Process Name,Category,Rate\nCNC,Machining,abc\n,Welding,10\n")
	out, err = execute(t, "validate", "processes", bad)
	if !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("validate error = %v, want ErrValidationFailed", err)
	}
	if exitCode(err) != exitValidation {
		t.Errorf("exit = %d, want %d", exitCode(err), exitValidation)
	}
	for _, want := range []string{"Hourly Rate", `"abc"`, "Process Name", "Category"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, err = execute(t, "validate", "processes", good, "--map", "Rate=")
	if !errors.Is(err, core.ErrRequiredUnmapped) {
		t.Errorf("unmapped error = %v, want ErrRequiredUnmapped", err)
	}

	empty := writeFile(t, "empty.csv", "")
	_, err = execute(t, "validate", "processes", empty)
	if !errors.Is(err, core.ErrEmptyInput) {
		t.Errorf("empty error = %v, want ErrEmptyInput", err)
	}
}

func TestValidateCommand_SkipFirstRow(t *testing.T) {
	path := writeFile(t, "units.csv", "Process Name,Category,Rate\n(text),(select),(USD/h)\nCNC,Machining,85\n")

	if _, err := execute(t, "validate", "processes", path); !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("validate error = %v, want ErrValidationFailed", err)
	}

	out, err := execute(t, "validate", "processes", path, "--skip-first-row")
	if err != nil {
		t.Fatalf("validate --skip-first-row error = %v", err)
	}
	if !strings.Contains(out, "1 rows valid") {
		t.Errorf("output = %q", out)
	}
}

func TestImportCommand_SQLite(t *testing.T) {
	path := writeFile(t, "processes.csv", processesCSV)
	db := filepath.Join(t.TempDir(), "records.db")

	out, err := execute(t, "import", "processes", path, "--url", db)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "2 rows committed (2 inserted, 0 updated, 0 skipped)") {
		t.Errorf("first import output = %q", out)
	}

	out, err = execute(t, "import", "processes", path, "--url", db)
	if err != nil {
		t.Fatalf("second import error = %v", err)
	}
	if !strings.Contains(out, "(0 inserted, 0 updated, 2 skipped)") {
		t.Errorf("second import output = %q", out)
	}

	out, err = execute(t, "import", "processes", path, "--url", db, "--update-existing")
	if err != nil {
		t.Fatalf("update import error = %v", err)
	}
	if !strings.Contains(out, "(0 inserted, 2 updated, 0 skipped)") {
		t.Errorf("update import output = %q", out)
	}
}

func TestImportCommand_ValidateOnly(t *testing.T) {
	path := writeFile(t, "processes.csv", processesCSV)

	out, err := execute(t, "import", "processes", path, "--validate-only")
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "2 rows ready (validate only") {
		t.Errorf("output = %q", out)
	}
}

func TestImportCommand_Errors(t *testing.T) {
	path := writeFile(t, "processes.csv", processesCSV)

	_, err := execute(t, "import", "processes", path)
	if exitCode(err) != exitUsage {
		t.Errorf("missing --url exit = %d, want %d (err %v)", exitCode(err), exitUsage, err)
	}

	_, err = execute(t, "import", "processes", path, "--url", "x", "--strategy", "greedy")
	if exitCode(err) != exitUsage {
		t.Errorf("bad strategy exit = %d, want %d (err %v)", exitCode(err), exitUsage, err)
	}

	_, err = execute(t, "import", "processes", path, "--url", "x", "--threshold", "1.5")
	if exitCode(err) != exitUsage {
		t.Errorf("bad threshold exit = %d, want %d (err %v)", exitCode(err), exitUsage, err)
	}

	bad := writeFile(t, "bad.csv", "Process Name,Rate\nCNC,abc\n")
	db := filepath.Join(t.TempDir(), "records.db")
	_, err = execute(t, "import", "processes", bad, "--url", db)
	if !errors.Is(err, core.ErrValidationFailed) {
		t.Errorf("invalid rows error = %v, want ErrValidationFailed", err)
	}
	if _, statErr := os.Stat(db); statErr == nil {
		t.Error("sink opened although validation failed")
	}
}
