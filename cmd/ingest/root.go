package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/csvrows"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Load groundwater CSV uploads",
		Long:          "ingest reads a CSV upload of heavy-metal readings and feeds it to the groundwater ETL service.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
	}
	cmd.AddCommand(newPublishCmd(), newLocalCmd())
	return cmd
}

// readUpload decodes every row of the CSV file at path.
func readUpload(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csvrows.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
