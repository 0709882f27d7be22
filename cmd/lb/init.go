package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize litebrite in this git repo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		data, err := store.Dump(types.NewStore())
		if err != nil {
			return err
		}
		if err := repo.InitBranch(data); err != nil {
			return err
		}
		recordOp(repo, "init", "", "")
		fmt.Println("initialized litebrite branch")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
