package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/services"
)

func newDiagnoseCmd() *cobra.Command {
	var orgID string
	var save bool

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Evaluate integration health for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			snapshot, err := state.diagnostician.Evaluate(cmd.Context(), orgID, services.EvaluateOptions{Save: save})
			if err != nil {
				return err
			}

			fmt.Printf("Overall:    %s\n", strings.ToUpper(string(snapshot.Overall)))
			fmt.Printf("Connected:  %v\n", snapshot.Connected)
			fmt.Printf("Mappings:   complete=%v\n", snapshot.MappingsComplete)
			for _, b := range snapshot.Missing {
				fmt.Printf("  missing: %s\n", b)
			}
			for _, w := range snapshot.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the snapshot and alert on transitions")
	cmd.MarkFlagRequired("org")

	return cmd
}

func newTestPostCmd() *cobra.Command {
	var orgID, note string

	cmd := &cobra.Command{
		Use:   "test-post",
		Short: "Run the auto-reversing connectivity test posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			result, err := state.syncer.RunTestPosting(cmd.Context(), orgID, state.cfg.Sync.SameDayReverse, note)
			if err != nil {
				var partial *models.PartialSequenceError
				if errors.As(err, &partial) {
					fmt.Printf("Forward entry %s posted (dated %s) but the reversal failed.\n", partial.ForwardID, partial.ForwardDate)
					fmt.Println("Reverse it manually in the provider, or re-run once the provider recovers.")
				}
				return err
			}

			fmt.Printf("Forward entry: %s (dated %s)\n", result.ForwardID, result.Date)
			fmt.Printf("Reverse entry: %s (dated %s)\n", result.ReverseID, result.ReverseDate)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&note, "note", "", "Memo recorded on both test entries")
	cmd.MarkFlagRequired("org")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "verify <external-id>...",
		Short: "Verify previously posted entries exist in the external ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			results, err := state.verifier.Verify(cmd.Context(), orgID, args)
			if err != nil {
				return err
			}

			for _, r := range results {
				if r.Found {
					fmt.Printf("%-30s found (dated %s)\n", r.ID, r.TxnDate)
				} else {
					fmt.Printf("%-30s NOT FOUND\n", r.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.MarkFlagRequired("org")

	return cmd
}

func newSyncJournalCmd() *cobra.Command {
	var orgID, start, end string
	var commit bool

	cmd := &cobra.Command{
		Use:   "sync-journal",
		Short: "Preview or commit the period's journal entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			period := services.Period{Start: start, End: end}

			if !commit {
				entry, export, err := state.syncer.Preview(cmd.Context(), orgID, period)
				if err != nil {
					return err
				}
				fmt.Printf("Preview export %s (%s..%s)\n\n", export.ID, start, end)
				printEntry(entry)
				return nil
			}

			export, err := state.syncer.Commit(cmd.Context(), orgID, period)
			if err != nil {
				return err
			}
			fmt.Printf("Committed export %s as external entry %s\n", export.ID, export.ExternalID)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&start, "start", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Period end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Post to the external ledger instead of previewing")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func printEntry(entry *models.JournalEntry) {
	fmt.Printf("%-18s %-30s %15s %15s\n", "Bucket", "Account", "Debit", "Credit")
	fmt.Println(strings.Repeat("-", 82))
	for _, line := range entry.Lines {
		account := line.AccountName
		if account == "" {
			account = "(unmapped)"
		}
		debit, credit := "", ""
		if line.Debit != 0 {
			debit = models.ToDecimal(line.Debit, entry.Currency)
		}
		if line.Credit != 0 {
			credit = models.ToDecimal(line.Credit, entry.Currency)
		}
		fmt.Printf("%-18s %-30s %15s %15s\n", line.Bucket, account, debit, credit)
	}
	fmt.Println(strings.Repeat("-", 82))
	fmt.Printf("%-49s %15s %15s\n", "",
		models.ToDecimal(entry.TotalDebits(), entry.Currency),
		models.ToDecimal(entry.TotalCredits(), entry.Currency))
}
