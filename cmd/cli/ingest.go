package cli

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/resoldhq/ledgermirror/pkg/services"
)

func newIngestCmd() *cobra.Command {
	var orgID, sourceLabel string

	cmd := &cobra.Command{
		Use:   "ingest <csv-file>",
		Short: "Import a marketplace CSV export",
		Long: `Import a marketplace CSV export into the local ledger. Rows are
matched by a content-derived idempotency key, so re-importing the same
file skips every row it already inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readCSVRows(args[0])
			if err != nil {
				return err
			}

			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			result, err := state.ingester.Ingest(orgID, sourceLabel, rows)
			if err != nil {
				return err
			}

			fmt.Printf("Inserted %d, skipped %d duplicates, %d errors\n",
				result.InsertedCount(), result.Duplicates, len(result.Errors))
			for _, re := range result.Errors {
				fmt.Printf("  row %d: %s\n", re.Row, re.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&sourceLabel, "source", "csv-import", "Source label recorded on every row")
	cmd.MarkFlagRequired("org")

	return cmd
}

func readCSVRows(path string) ([]services.IngestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	header := records[0]
	rows := make([]services.IngestRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := services.IngestRow{}
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
