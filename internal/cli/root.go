// Package cli implements the relc command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/syssam/relcomp/dialect"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Dialect string
	Config  string // path of a YAML capability config
	Format  string // "text" | "yaml"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "yaml"}

// NewRootCommand creates the root command of relc.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "relc",
		Short: "Inspect compiled relational statements",
		Long:  "relc prints the capability set of a backend and the SQL compiled for a persistence mapping,\nand allocates keys from key generators.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", dialect.Postgres, "backend dialect")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "capability config file, overrides --dialect")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log compilation to stderr")

	cmd.AddCommand(NewCapsCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewNextKeyCommand(opts))
	return cmd
}

// capabilities resolves the capability set selected by the flags.
func (o *RootOptions) capabilities() (dialect.Capabilities, error) {
	if o.Config == "" {
		return dialect.Lookup(o.Dialect)
	}
	f, err := os.Open(o.Config)
	if err != nil {
		return dialect.Capabilities{}, err
	}
	defer f.Close()
	return dialect.LoadConfig(f)
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
