package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/JonMunkholm/fieldmap/internal/sink"
	"github.com/spf13/cobra"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitValidation = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// sessionOptions are the flags shared by map, validate and import.
type sessionOptions struct {
	threshold    float64
	strategy     string
	mappings     []string
	skipFirstRow bool
}

func (o *sessionOptions) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&o.threshold, "threshold", core.DefaultThreshold, "Minimum similarity score for auto-mapping")
	cmd.Flags().StringVar(&o.strategy, "strategy", string(core.StrategyFirstMatch), "Auto-mapping strategy: first or bijective")
	cmd.Flags().StringArrayVarP(&o.mappings, "map", "m", nil, `Override a column target as "Header=field" (empty field skips the column)`)
	cmd.Flags().BoolVar(&o.skipFirstRow, "skip-first-row", false, "Ignore the first data row")
}

// open loads path into a new session for entity and applies the overrides.
func (o *sessionOptions) open(entity, path string) (*core.Session, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	strategy, err := core.ParseStrategy(o.strategy)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	if o.threshold <= 0 || o.threshold > 1 {
		return nil, withCode(exitUsage, fmt.Errorf("--threshold %g must be in (0, 1]", o.threshold))
	}
	targets, err := parseMappings(o.mappings)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sess := core.NewSession(schema, core.WithMatcher(core.Matcher{Threshold: o.threshold, Strategy: strategy}))
	if err := sess.Load(filepath.Base(path), data); err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	if err := sess.SetMapping(targets); err != nil {
		return nil, withCode(exitUsage, err)
	}
	if err := sess.SetOptions(core.ImportOptions{SkipFirstRow: o.skipFirstRow}); err != nil {
		return nil, err
	}
	return sess, nil
}

// parseMappings turns "Header=field" pairs into a target map.
func parseMappings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		header, field, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --map %q (want Header=field)", p)
		}
		out[header] = strings.TrimSpace(field)
	}
	return out, nil
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List registered entity schemas and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSchemas(cmd.OutOrStdout(), core.Schemas())
		},
	}
}

func writeSchemas(w io.Writer, schemas []*core.Schema) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range schemas {
		fmt.Fprintf(tw, "%s (%s)\n", s.Entity, s.Label)
		for _, f := range s.Fields {
			req := ""
			if f.Required {
				req = "required"
			}
			opts := ""
			if len(f.Options) > 0 {
				opts = strings.Join(f.Options, "|")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", f.Key, f.Label, f.Type, req, opts)
		}
	}
	return tw.Flush()
}

func newTemplateCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "template <entity>",
		Short: "Write the empty import template for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := core.Lookup(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}

			var data []byte
			switch format {
			case "csv":
				data, err = core.TemplateCSV(schema)
			case "xlsx":
				data, err = core.TemplateXLSX(schema)
			default:
				return withCode(exitUsage, fmt.Errorf("invalid --format %q (must be csv or xlsx)", format))
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Template format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newMapCmd() *cobra.Command {
	var opts sessionOptions

	cmd := &cobra.Command{
		Use:   "map <entity> <file>",
		Short: "Show the proposed column mapping for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(args[0], args[1])
			if err != nil {
				return err
			}
			return writeMapping(cmd.OutOrStdout(), sess)
		},
	}
	opts.register(cmd)
	return cmd
}

func writeMapping(w io.Writer, sess *core.Session) error {
	schema := sess.Schema()
	matcher := sess.Matcher()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tFIELD\tSUGGESTIONS")
	for _, c := range sess.Mapping() {
		target := "(skip)"
		if f, ok := schema.Field(c.Field); ok {
			target = f.Key
		}
		var sugg []string
		for _, cand := range matcher.Suggest(c.Header, schema, 3) {
			mark := ""
			if cand.Match {
				mark = "*"
			}
			sugg = append(sugg, fmt.Sprintf("%s %.2f%s", cand.Field, cand.Score, mark))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Header, target, strings.Join(sugg, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if missing := sess.MissingRequired(); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, f := range missing {
			labels[i] = f.Label
		}
		fmt.Fprintf(w, "\nmissing required: %s\n", strings.Join(labels, ", "))
	}
	if dups := sess.Mapping().Duplicates(); len(dups) > 0 {
		fmt.Fprintf(w, "mapped more than once: %s\n", strings.Join(dups, ", "))
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	var opts sessionOptions

	cmd := &cobra.Command{
		Use:   "validate <entity> <file>",
		Short: "Validate every row of a file against an entity schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(args[0], args[1])
			if err != nil {
				return err
			}
			return runValidate(cmd.OutOrStdout(), sess)
		},
	}
	opts.register(cmd)
	return cmd
}

// runValidate moves sess to validation and prints any row errors.
func runValidate(w io.Writer, sess *core.Session) error {
	verrs, err := sess.Validate()
	if err != nil {
		return withCode(exitValidation, err)
	}
	if len(verrs) == 0 {
		fmt.Fprintf(w, "%d rows valid\n", sess.RowCount())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tLINE\tFIELD\tVALUE\tERROR")
	for _, e := range verrs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%q\t%s\n", e.RowIndex, e.Line, e.FieldLabel, e.RawValue, e.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return withCode(exitValidation, fmt.Errorf("%w: %d errors in %d rows", core.ErrValidationFailed, len(verrs), sess.RowCount()))
}

func newImportCmd() *cobra.Command {
	var (
		opts           sessionOptions
		driver, dbURL  string
		updateExisting bool
		validateOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "import <entity> <file>",
		Short: "Validate a file and commit its records to a database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if driver != sink.DriverNone && dbURL == "" && !validateOnly {
				return withCode(exitUsage, fmt.Errorf("--url is required for --driver=%s", driver))
			}

			sess, err := opts.open(args[0], args[1])
			if err != nil {
				return err
			}
			if err := sess.SetOptions(core.ImportOptions{
				SkipFirstRow:   opts.skipFirstRow,
				UpdateExisting: updateExisting,
				ValidateOnly:   validateOnly,
			}); err != nil {
				return err
			}
			if err := runValidate(cmd.OutOrStdout(), sess); err != nil {
				return err
			}

			var records sink.Sink
			if !validateOnly {
				records, err = sink.Open(ctx, sink.Config{Driver: driver, URL: dbURL})
				if err != nil {
					return fmt.Errorf("failed to open %s sink: %w", driver, err)
				}
			}
			if records != nil {
				defer func() {
					if err := records.Close(); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close sink: %v\n", err)
					}
				}()
			}

			result, err := sess.Commit(ctx, sink.IngestFunc(records))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), sess.Entity(), result)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&driver, "driver", sink.DriverSQLite, "Sink driver: postgres, mysql, sqlite or none")
	cmd.Flags().StringVar(&dbURL, "url", "", "Sink connection string or SQLite file path")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "Overwrite records whose key already exists")
	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Validate and materialize without writing")
	return cmd
}

func writeResult(w io.Writer, entity string, r core.CommitResult) error {
	if r.ValidateOnly {
		_, err := fmt.Fprintf(w, "%s: %d rows ready (validate only, nothing written)\n", entity, r.Rows)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d rows committed (%d inserted, %d updated, %d skipped)\n",
		entity, r.Rows, r.Stats.Inserted, r.Stats.Updated, r.Stats.Skipped)
	return err
}
