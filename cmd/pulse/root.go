package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pulse/internal/insights/models"
	"pulse/internal/platform/config"
	"pulse/internal/platform/logger"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	cfgFile     string
	output      string
	logLevel    string
	adoptionCSV string
	usageCSV    string
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pulse",
		Short:         "GenAI adoption insights engine",
		Long:          "pulse correlates GenAI adoption with cloud service usage and turns the result into ranked insights and dashboard KPIs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (default is ./pulse.yaml)")
	f.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	f.StringVar(&opts.adoptionCSV, "adoption-csv", "", "adoption dataset CSV (overrides config)")
	f.StringVar(&opts.usageCSV, "usage-csv", "", "cloud usage dataset CSV (overrides config)")
	f.StringVar(&opts.databaseURL, "database-url", "", "postgres URL (overrides config)")

	root.AddCommand(
		newKPIsCmd(opts),
		newInsightsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// load resolves configuration, applying flag overrides, and builds a logger
// writing to the command's stderr.
func (o *options) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	f := cmd.Flags()
	if f.Changed("adoption-csv") {
		cfg.AdoptionCSV = o.adoptionCSV
	}
	if f.Changed("usage-csv") {
		cfg.UsageCSV = o.usageCSV
	}
	if f.Changed("database-url") {
		cfg.DatabaseURL = o.databaseURL
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat), nil
}

// filterFlags adds --year and --industry to a command.
type filterFlags struct {
	year       int
	industries []string
}

func (ff *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ff.year, "year", 0, "restrict to one year")
	cmd.Flags().StringSliceVar(&ff.industries, "industry", nil, "restrict to industries (repeatable or comma-separated)")
}

func (ff *filterFlags) signature() models.FilterSignature {
	var year *int
	if ff.year > 0 {
		year = &ff.year
	}
	return models.NewFilterSignature(year, ff.industries...)
}

// render writes v in the requested format. YAML goes through the JSON
// encoding so both formats share field names.
func render(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
