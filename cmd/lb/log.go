package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/oplog"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the local operation audit trail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		itemArg, _ := cmd.Flags().GetString("item")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		gitDir, err := repo.GitDir()
		if err != nil {
			return err
		}
		l, err := oplog.Open(filepath.Join(gitDir, "litebrite", "oplog.db"))
		if err != nil {
			return err
		}
		defer l.Close()

		var entries []oplog.Entry
		if itemArg != "" {
			s, _, err := loadStore(repo)
			if err != nil {
				return err
			}
			id, err := ids.Resolve(s, itemArg)
			if err != nil {
				return err
			}
			entries, err = l.ForItem(id)
			if err != nil {
				return err
			}
		} else {
			entries, err = l.Recent(limit)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return outputJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("no recorded operations")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-8s %-10s %s",
				e.At.Local().Format("2006-01-02 15:04"), e.Op, e.ItemID, e.Actor)
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	logCmd.Flags().String("item", "", "Show history for one item")
	rootCmd.AddCommand(logCmd)
}
