package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
)

var claimCmd = &cobra.Command{
	Use:   "claim <id>",
	Short: "Claim an item (fetch + set claimed_by + push)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		engine, err := newEngine(repo)
		if err != nil {
			return err
		}

		s, _, err := loadStore(repo)
		if err != nil {
			return err
		}
		id, err := ids.Resolve(s, args[0])
		if err != nil {
			return err
		}

		item, err := engine.Claim(id)
		if err != nil {
			return err
		}
		recordOp(repo, "claim", id, engine.Actor)

		if jsonOutput {
			return outputJSON(item)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("claimed %s (%s)\n", green(id), engine.Actor)
		return nil
	},
}

var unclaimCmd = &cobra.Command{
	Use:   "unclaim <id>",
	Short: "Unclaim an item (fetch + clear claimed_by + push)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		engine, err := newEngine(repo)
		if err != nil {
			return err
		}

		s, _, err := loadStore(repo)
		if err != nil {
			return err
		}
		id, err := ids.Resolve(s, args[0])
		if err != nil {
			return err
		}

		if err := engine.Unclaim(id); err != nil {
			return err
		}
		recordOp(repo, "unclaim", id, engine.Actor)

		if jsonOutput {
			return outputJSON(map[string]string{"id": id})
		}
		fmt.Printf("unclaimed %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(unclaimCmd)
}
