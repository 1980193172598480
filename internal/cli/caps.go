package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relcomp/dialect"
)

type capsView struct {
	Dialect                string `yaml:"dialect"`
	Paging                 string `yaml:"paging"`
	Params                 string `yaml:"params"`
	LimitRequiredForOffset bool   `yaml:"limit_required_for_offset"`
	MaxLimit               string `yaml:"max_limit"`
	InlineLimitOffset      bool   `yaml:"inline_limit_offset"`
	BackslashEscapes       bool   `yaml:"backslash_escapes"`
	Sequences              bool   `yaml:"sequences"`
	Batches                bool   `yaml:"batches"`
	MaxBatchSize           int    `yaml:"max_batch_size"`
	BooleanParams          bool   `yaml:"boolean_params"`
	TemporaryTables        bool   `yaml:"temporary_tables"`
	Returning              bool   `yaml:"returning"`
	MaxInlineSize          int    `yaml:"max_inline_size"`
	RealType               string `yaml:"real_type"`
}

func newCapsView(c dialect.Capabilities) capsView {
	return capsView{
		Dialect:                c.Name,
		Paging:                 c.Paging.String(),
		Params:                 c.Params.String(),
		LimitRequiredForOffset: c.LimitRequiredForOffset,
		MaxLimit:               c.MaxLimit,
		InlineLimitOffset:      c.InlineLimitOffset,
		BackslashEscapes:       c.BackslashEscapes,
		Sequences:              c.Sequences,
		Batches:                c.Batches,
		MaxBatchSize:           c.MaxBatchSize,
		BooleanParams:          c.BooleanParams,
		TemporaryTables:        c.TemporaryTables,
		Returning:              c.Returning,
		MaxInlineSize:          c.MaxInlineSize,
		RealType:               c.RealType,
	}
}

// NewCapsCommand creates the caps command.
func NewCapsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "caps",
		Short: "Print the capability set of a backend",
		Long: `Print the capability set selected by --dialect or --config.

The yaml format prints a document that can be used as the overrides
section of a capability config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.capabilities()
			if err != nil {
				return err
			}
			return printCaps(cmd.OutOrStdout(), rootOpts.Format, c)
		},
	}
}

func printCaps(w io.Writer, format string, c dialect.Capabilities) error {
	v := newCapsView(c)
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		name  string
		value any
	}{
		{"dialect", v.Dialect},
		{"paging", v.Paging},
		{"params", v.Params},
		{"limit required for offset", v.LimitRequiredForOffset},
		{"max limit", v.MaxLimit},
		{"inline limit/offset", v.InlineLimitOffset},
		{"backslash escapes", v.BackslashEscapes},
		{"sequences", v.Sequences},
		{"batches", v.Batches},
		{"max batch size", v.MaxBatchSize},
		{"boolean params", v.BooleanParams},
		{"temporary tables", v.TemporaryTables},
		{"returning", v.Returning},
		{"max inline size", v.MaxInlineSize},
		{"real type", v.RealType},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%v\n", r.name, r.value)
	}
	return tw.Flush()
}
