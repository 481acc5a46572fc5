package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/hbomb79/mediainspect/internal"
	"github.com/hbomb79/mediainspect/internal/config"
	"github.com/hbomb79/mediainspect/internal/fields"
	"github.com/hbomb79/mediainspect/pkg/logger"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type flags struct {
	configPath     string
	sort           string
	direction      string
	filters        []string
	filenameLength int
	cached         bool
	prune          bool
	watch          bool
	noColor        bool
	verbose        int
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "mediainspect [paths...]",
		Short: "Inspect the technical metadata of media files",
		Long: `Discovers media files beneath the given paths, probes them with ffprobe and
prints a sortable, filterable table of their codec, resolution, bitrate,
duration and audio details. Probe results are cached by file identity, so
unchanged files are never probed twice.

Filters take the form 'filename:<text>' or '<column>:<op>:<value>', where the
column is one of size, duration, fps or bitrate and op is '>' or '<'. Durations
accept shorthand such as 1h30m or 90min.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !f.cached && !f.prune {
				_ = cmd.Usage()
				return reportErr(fmt.Errorf("at least one path is required unless --cached or --prune is given"))
			}
			if f.watch && len(args) == 0 {
				return reportErr(fmt.Errorf("--watch requires at least one path"))
			}

			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return reportErr(err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			inspector, err := internal.New(cfg, cmd.OutOrStdout(), nil)
			if err != nil {
				return reportErr(err)
			}

			return reportErr(inspector.Run(ctx, internal.Options{
				Paths:   args,
				Filters: f.filters,
				Cached:  f.cached,
				Prune:   f.prune,
				Watch:   f.watch,
			}))
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file (default ~/.mediainfo/config.yaml)")
	persistent.BoolVar(&f.noColor, "no-color", false, "disable coloured output")
	persistent.CountVarP(&f.verbose, "verbose", "v", "increase log verbosity (-v debug, -vv verbose)")

	fl := cmd.Flags()
	fl.StringVarP(&f.sort, "sort", "s", "bitrate", fmt.Sprintf("column to sort by (%v)", fields.ColumnNames()))
	fl.StringVarP(&f.direction, "direction", "d", "desc", "sort direction (asc or desc)")
	fl.StringArrayVarP(&f.filters, "filter", "f", nil, "filter rows, e.g. 'bitrate:>:5' or 'filename:s01' (repeatable)")
	fl.IntVarP(&f.filenameLength, "filename-length", "l", 65, "maximum filename length before truncation (0 disables)")
	fl.BoolVar(&f.cached, "cached", false, "show every cached entry instead of scanning paths")
	fl.BoolVar(&f.prune, "prune", false, "remove cache entries for files which no longer exist")
	fl.BoolVarP(&f.watch, "watch", "w", false, "keep running and refresh the table when media changes")

	cmd.AddCommand(configCmd(f))
	return cmd
}

func configCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return reportErr(err)
			}

			out, err := cfg.YAML()
			if err != nil {
				return reportErr(err)
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}

// loadConfig reads the configuration file and environment, then applies any
// flags explicitly set on the command line before validating the result.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("sort") {
		cfg.Sort = f.sort
	}
	if changed("direction") {
		cfg.Direction = f.direction
	}
	if changed("filename-length") {
		cfg.FilenameLength = f.filenameLength
	}
	if f.noColor {
		cfg.Color = config.ColorNever
	}
	switch {
	case f.verbose >= 2:
		cfg.LogLevel = logger.VERBOSE.Name()
	case f.verbose == 1:
		cfg.LogLevel = logger.DEBUG.Name()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	color.NoColor = !cfg.UseColor()
	logger.SetMinLoggingLevel(cfg.Level().Level())
	return cfg, nil
}

func reportErr(err error) error {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	return err
}
