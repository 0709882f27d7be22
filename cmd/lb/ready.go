package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/store"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Show open, unblocked, unclaimed items sorted by priority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		s, _, err := loadStore(repo)
		if err != nil {
			return err
		}
		items := store.ReadyItems(s)

		if jsonOutput {
			return outputJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("no ready items")
			return nil
		}
		printListHeader()
		for _, item := range items {
			printListRow(item)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readyCmd)
}
