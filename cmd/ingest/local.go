package main

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/storage"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"github.com/couchcryptid/groundwater-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newLocalCmd() *cobra.Command {
	var (
		store      string
		sqlitePath string
	)
	cmd := &cobra.Command{
		Use:   "local FILE",
		Short: "Process upload rows directly into a site store",
		Long: `Runs the transform and load stages over the upload without Kafka and
prints one JSON result per row. Failing rows are reported, not fatal.`,
		Example: `  ingest local data/mock/groundwater_sample.csv --store sqlite --sqlite-path gw.db`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store") {
				cfg.StoreDriver = store
			}
			if cmd.Flags().Changed("sqlite-path") {
				cfg.SQLitePath = sqlitePath
			}

			rows, err := readUpload(args[0])
			if err != nil {
				return err
			}

			backend, closeStore, err := storage.Open(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
			metrics := observability.NewMetricsWith(prometheus.NewRegistry())
			results, err := pipeline.NewIngester(backend, nil, logger, metrics).IngestRows(cmd.Context(), rows)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("encode results: %w", err)
			}

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			cmd.PrintErrf("%d rows processed, %d failed\n", len(results), failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&store, "store", config.StoreMemory, "site store driver: memory, sqlite or postgres")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "", "sqlite database file (default SQLITE_PATH)")
	return cmd
}
