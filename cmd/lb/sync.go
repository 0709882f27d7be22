package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	syncpkg "github.com/steveyegge/litebrite/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local changes with remote (fetch + merge + push)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		engine, err := newEngine(repo)
		if err != nil {
			return err
		}

		result, err := engine.Sync()
		if err != nil {
			return err
		}
		recordOp(repo, "sync", "", string(result.Action))

		yellow := color.New(color.FgYellow).SprintFunc()
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("warning:"), w)
		}

		if jsonOutput {
			return outputJSON(map[string]interface{}{
				"action":   result.Action,
				"warnings": len(result.Warnings),
			})
		}
		switch result.Action {
		case syncpkg.ActionUpToDate:
			fmt.Println("already in sync")
		case syncpkg.ActionPublished:
			fmt.Println("pushed litebrite branch to remote")
		case syncpkg.ActionFastForward:
			fmt.Println("fast-forwarded to remote")
		case syncpkg.ActionPushed, syncpkg.ActionMerged:
			fmt.Println("synced with remote")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
