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

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := args[0]
		typeName, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		parent, _ := cmd.Flags().GetString("parent")
		description, _ := cmd.Flags().GetString("description")

		itemType, err := types.ParseItemType(typeName)
		if err != nil {
			return err
		}

		var id string
		err = mutateStore(func(s *types.Store) (string, error) {
			parentID := ""
			if parent != "" {
				parentID, err = ids.Resolve(s, parent)
				if err != nil {
					return "", err
				}
			}
			id, err = store.CreateItem(s, title, itemType, priority, description, parentID, time.Now().UTC())
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Create item %s", id), nil
		})
		if err != nil {
			return err
		}

		if repo, err := openRepo(); err == nil {
			recordOp(repo, "create", id, title)
		}
		if jsonOutput {
			return outputJSON(map[string]string{"id": id})
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("created %s\n", green(id))
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("type", "t", "task", "Item type (epic, feature, task)")
	createCmd.Flags().IntP("priority", "p", 2, "Priority (0-4, 0 is highest)")
	createCmd.Flags().String("parent", "", "Parent item id or prefix")
	createCmd.Flags().StringP("description", "d", "", "Description")
	rootCmd.AddCommand(createCmd)
}
