package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema"
)

// ExplainOptions holds the flags of the explain command.
type ExplainOptions struct {
	Types  []string
	Ops    []string
	Fields []string
	Keys   []string
}

var opNames = map[string]schema.Op{
	"insert": schema.OpInsert,
	"update": schema.OpUpdate,
	"remove": schema.OpRemove,
}

// explained is one compiled task in yaml output.
type explained struct {
	Type       string   `yaml:"type"`
	Op         string   `yaml:"op"`
	Key        string   `yaml:"key"`
	Statements []string `yaml:"statements"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{}
	cmd := &cobra.Command{
		Use:   "explain <mapping.yaml>",
		Short: "Print the persist statements compiled for a mapping",
		Long: `Compile the insert, update and remove statements of every type in a
YAML mapping file and print them with placeholders.

Updates are compiled as if every field listed in --fields changed; by
default every field is considered changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, opts, args[0], cmd)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "types to explain (default all)")
	cmd.Flags().StringSliceVar(&opts.Ops, "op", []string{"insert", "update", "remove"}, "operations to compile")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "changed fields of updates (default all)")
	cmd.Flags().StringSliceVar(&opts.Keys, "keygen", nil, "key generators to print")
	return cmd
}

func runExplain(rootOpts *RootOptions, opts *ExplainOptions, path string, cmd *cobra.Command) error {
	caps, err := rootOpts.capabilities()
	if err != nil {
		return err
	}
	ops := make([]schema.Op, 0, len(opts.Ops))
	for _, name := range opts.Ops {
		op, ok := opNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown operation %q: must be one of insert, update, remove", name)
		}
		ops = append(ops, op)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	types, err := schema.LoadMapping(f)
	if err != nil {
		return err
	}
	b := persist.New(caps, persist.WithLogger(rootOpts.logger(cmd.ErrOrStderr())))

	var out []explained
	for _, t := range types {
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, t.Name) {
			continue
		}
		for _, op := range ops {
			task := persist.Task{Type: t, Kind: op}
			if op == schema.OpUpdate {
				if task.Changed, err = changed(t, opts.Fields); err != nil {
					return err
				}
			}
			cs, err := b.Compile(task)
			if err != nil {
				return err
			}
			e := explained{Type: t.Name, Op: op.String(), Key: cs.Key.String()}
			for _, s := range cs.Statements {
				e.Statements = append(e.Statements, sql.Template(caps, s.Stmt))
			}
			out = append(out, e)
		}
	}
	for _, name := range opts.Keys {
		g, err := b.KeyGenerator(name)
		if err != nil {
			return err
		}
		out = append(out, explained{Type: name, Op: "keygen", Statements: strings.Split(g.Template(), "\n")})
	}
	return printExplained(cmd.OutOrStdout(), rootOpts.Format, out)
}

// changed returns the field set of the named fields, or every field of t.
func changed(t *schema.Type, names []string) (persist.FieldSet, error) {
	var set persist.FieldSet
	if len(names) == 0 {
		for _, f := range t.Fields {
			set.Set(f.Offset)
		}
		return set, nil
	}
	for _, name := range names {
		f, ok := t.FieldByName(name)
		if !ok {
			return set, fmt.Errorf("type %s has no field %q", t.Name, name)
		}
		set.Set(f.Offset)
	}
	return set, nil
}

func printExplained(w io.Writer, format string, out []explained) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	header := color.New(color.FgCyan, color.Bold)
	for i, e := range out {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header.Fprintf(w, "-- %s %s\n", e.Type, e.Op)
		if len(e.Statements) == 0 {
			fmt.Fprintln(w, "-- nothing to execute")
		}
		for _, s := range e.Statements {
			fmt.Fprintln(w, s)
		}
	}
	return nil
}
