package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/models"
)

func newMappingsCmd() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and edit bucket-to-account mappings",
	}
	cmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization id")
	cmd.MarkPersistentFlagRequired("org")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List bucket mappings and the provider's chart of accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			mappings, err := state.db.GetAccountMappings(orgID, state.cfg.Provider.Name)
			if err != nil {
				return err
			}

			accounts, err := state.client.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			accountsByID := lo.SliceToMap(accounts, func(a ledger.Account) (string, ledger.Account) {
				return a.ID, a
			})

			mapped := lo.SliceToMap(mappings, func(m *models.AccountMapping) (models.Bucket, *models.AccountMapping) {
				return m.Bucket, m
			})

			fmt.Printf("%-18s %-12s %-30s %-20s %s\n", "Bucket", "Account ID", "Account Name", "Type", "Status")
			fmt.Println(strings.Repeat("-", 95))
			for _, bucket := range append(models.RequiredBuckets, models.BucketShippingIncome, models.BucketExpenses) {
				m, ok := mapped[bucket]
				if !ok {
					fmt.Printf("%-18s %-12s %-30s %-20s %s\n", bucket, "-", "-", "-", "UNMAPPED")
					continue
				}
				status := "ok"
				accountType := "?"
				if account, found := accountsByID[m.ExternalAccountID]; found {
					accountType = account.Type
					if !models.IsRecommendedType(bucket, account.Type, account.Subtype) {
						status = "type warning"
					}
				} else {
					status = "account missing"
				}
				fmt.Printf("%-18s %-12s %-30s %-20s %s\n",
					bucket, m.ExternalAccountID, m.ExternalDisplayName, accountType, status)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <bucket> <external-account-id>",
		Short: "Map a bucket to an external account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			bucket := models.Bucket(args[0])
			accountID := args[1]

			accounts, err := state.client.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			account, found := lo.Find(accounts, func(a ledger.Account) bool {
				return a.ID == accountID
			})
			if !found {
				return fmt.Errorf("account %s not found in the provider's chart of accounts", accountID)
			}

			if !models.IsRecommendedType(bucket, account.Type, account.Subtype) {
				fmt.Printf("Warning: %q is a %s account, which is not recommended for bucket %s. Mapping anyway.\n",
					account.Name, account.Type, bucket)
			}

			mapping := &models.AccountMapping{
				OrgID:               orgID,
				Provider:            state.cfg.Provider.Name,
				Bucket:              bucket,
				ExternalAccountID:   account.ID,
				ExternalDisplayName: account.Name,
			}
			if err := state.db.UpsertAccountMapping(mapping); err != nil {
				return err
			}

			fmt.Printf("Mapped %s -> %s (%s)\n", bucket, account.Name, account.ID)
			return nil
		},
	}

	cmd.AddCommand(listCmd, setCmd)
	return cmd
}
