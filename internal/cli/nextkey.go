package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/dialect/sql/sqlgraph"
)

// NextKeyOptions holds the flags of the nextkey command.
type NextKeyOptions struct {
	DSN   string
	Count int
}

// NewNextKeyCommand creates the nextkey command.
func NewNextKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextKeyOptions{}
	cmd := &cobra.Command{
		Use:   "nextkey <generator>",
		Short: "Allocate keys from a key generator",
		Long: `Run the key generator compiled for the backend against a live database
and print the allocated keys.

The generator is a sequence on backends with native sequences and a
counter table otherwise. With --verbose every executed statement and the
statement statistics are logged to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNextKey(rootOpts, opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name of the database")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of keys to allocate")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func runNextKey(rootOpts *RootOptions, opts *NextKeyOptions, name string, cmd *cobra.Command) error {
	if opts.Count < 1 {
		return fmt.Errorf("invalid count %d: must be positive", opts.Count)
	}
	caps, err := rootOpts.capabilities()
	if err != nil {
		return err
	}
	logger := rootOpts.logger(cmd.ErrOrStderr())
	g, err := persist.New(caps, persist.WithLogger(logger)).KeyGenerator(name)
	if err != nil {
		return err
	}
	drv, err := sql.Open(caps.Name, opts.DSN)
	if err != nil {
		return err
	}
	defer drv.Close()

	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
	var eq dialect.Driver = stats
	if rootOpts.Verbose {
		eq = sql.NewDebugDriver(stats, sql.DebugWithLogger(logger))
	}
	keys := make([]int64, 0, opts.Count)
	for range opts.Count {
		key, err := sqlgraph.NextKey(cmd.Context(), eq, g)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	logger.Debug("keys allocated", "generator", name, "stats", stats.QueryStats().Stats().String())
	return printKeys(cmd.OutOrStdout(), rootOpts.Format, keys)
}

func printKeys(w io.Writer, format string, keys []int64) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(keys); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	return nil
}
