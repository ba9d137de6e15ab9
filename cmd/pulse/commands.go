package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"pulse/internal/dataset"
	"pulse/internal/insights"
	"pulse/internal/insights/models"
	httptransport "pulse/internal/transport/http"
)

func newKPIsCmd(opts *options) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Print the dashboard KPI snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			module, err := insights.New(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer module.Close()

			snap, err := module.Service.GetKPIs(cmd.Context(), ff.signature())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, snap)
		},
	}
	ff.bind(cmd)
	return cmd
}

func newInsightsCmd(opts *options) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Compute and print insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			module, err := insights.New(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer module.Close()

			result, err := module.Service.GetInsights(cmd.Context(), ff.signature())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, result)
		},
	}
	ff.bind(cmd)
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		ff   filterFlags
		file string
	)
	cmd := &cobra.Command{
		Use:   "export <insight-id>",
		Short: "Export one insight as CSV",
		Long:  "Computes insights for the given filters and exports the insight with the given id. Ids are stable for the same data and filters.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			module, err := insights.New(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer module.Close()

			if _, err := module.Service.GetInsights(cmd.Context(), ff.signature()); err != nil {
				return err
			}
			body, err := module.Service.ExportInsight(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(file, body, 0o644)
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVar(&file, "file", "", "write the CSV to this path instead of stdout")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load the CSV datasets into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database_url is required for import")
			}
			adoption, usage, err := dataset.NewLoader(dataset.WithLoaderLogger(log)).Read(cmd.Context(), cfg.AdoptionCSV, cfg.UsageCSV)
			if err != nil {
				return err
			}

			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			store := dataset.NewPostgres(db)
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			if err := store.Import(cmd.Context(), adoption, usage); err != nil {
				return err
			}
			aligned, err := store.AlignedRecords(cmd.Context(), models.NewFilterSignature(nil))
			if err != nil {
				return err
			}
			log.Info("import complete",
				"adoption_rows", len(adoption),
				"usage_rows", len(usage),
				"aligned_records", len(aligned),
			)
			return nil
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return httptransport.Serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
