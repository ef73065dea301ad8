package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/evcraddock/wanderlust/internal/listing"
)

func newListingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listings",
		Short: "List all listings",
		Long:  "List all listings, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(database)

			listings, err := listing.NewRepository(database).List(context.Background())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), listings)
			}
			return printListingTable(cmd.OutOrStdout(), listings)
		},
	}
}
