package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the catalog with demo categories and products",
	Long: `seed deletes every category and product, then fills the catalog with a demo
set. Carts lose their items; orders keep their price snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := newService(st).Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories and %d products\n", res.Categories, res.Products)
		return nil
	},
}
