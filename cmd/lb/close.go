package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close an item (clears any claim)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		err := mutateStore(func(s *types.Store) (string, error) {
			resolved, err := ids.Resolve(s, args[0])
			if err != nil {
				return "", err
			}
			id = resolved
			if err := store.CloseItem(s, id, time.Now().UTC()); err != nil {
				return "", err
			}
			return fmt.Sprintf("Close item %s", id), nil
		})
		if err != nil {
			return err
		}

		if repo, err := openRepo(); err == nil {
			recordOp(repo, "close", id, "")
		}
		if jsonOutput {
			return outputJSON(map[string]string{"id": id})
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("closed %s\n", green(id))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an item and its deps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		err := mutateStore(func(s *types.Store) (string, error) {
			resolved, err := ids.Resolve(s, args[0])
			if err != nil {
				return "", err
			}
			id = resolved
			if err := store.DeleteItem(s, id); err != nil {
				return "", err
			}
			return fmt.Sprintf("Delete item %s", id), nil
		})
		if err != nil {
			return err
		}

		if repo, err := openRepo(); err == nil {
			recordOp(repo, "delete", id, "")
		}
		if jsonOutput {
			return outputJSON(map[string]string{"id": id})
		}
		fmt.Printf("deleted %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(deleteCmd)
}
