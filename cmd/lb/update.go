package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch store.ItemPatch
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			patch.Title = &title
		}
		if cmd.Flags().Changed("status") {
			statusName, _ := cmd.Flags().GetString("status")
			st, err := types.ParseStatus(statusName)
			if err != nil {
				return err
			}
			patch.Status = &st
		}
		if cmd.Flags().Changed("type") {
			typeName, _ := cmd.Flags().GetString("type")
			it, err := types.ParseItemType(typeName)
			if err != nil {
				return err
			}
			patch.ItemType = &it
		}
		if cmd.Flags().Changed("priority") {
			priority, _ := cmd.Flags().GetInt("priority")
			patch.Priority = &priority
		}
		if cmd.Flags().Changed("description") {
			description, _ := cmd.Flags().GetString("description")
			patch.Description = &description
		}
		parentFlag := cmd.Flags().Changed("parent")
		parent, _ := cmd.Flags().GetString("parent")

		var id string
		err := mutateStore(func(s *types.Store) (string, error) {
			resolved, err := ids.Resolve(s, args[0])
			if err != nil {
				return "", err
			}
			id = resolved
			if parentFlag {
				parentID, err := ids.Resolve(s, parent)
				if err != nil {
					return "", err
				}
				patch.ParentID = &parentID
			}
			if err := store.ApplyUpdate(s, id, patch, time.Now().UTC()); err != nil {
				return "", err
			}
			return fmt.Sprintf("Update item %s", id), nil
		})
		if err != nil {
			return err
		}

		if repo, err := openRepo(); err == nil {
			recordOp(repo, "update", id, "")
		}
		if jsonOutput {
			return outputJSON(map[string]string{"id": id})
		}
		fmt.Printf("updated %s\n", id)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().String("status", "", "New status (open, closed)")
	updateCmd.Flags().StringP("type", "t", "", "New item type")
	updateCmd.Flags().IntP("priority", "p", 0, "New priority (0-4)")
	updateCmd.Flags().StringP("description", "d", "", "New description (empty clears)")
	updateCmd.Flags().String("parent", "", "New parent item")
	rootCmd.AddCommand(updateCmd)
}
