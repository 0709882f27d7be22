package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show item details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
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
		item := s.Items[id]

		if jsonOutput {
			return outputJSON(showPayload(s, item))
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("  ID: %s\n", cyan(item.ID))
		fmt.Printf("  Title: %s\n", item.Title)
		fmt.Printf("  Type: %s\n", item.ItemType)
		fmt.Printf("  Status: %s\n", item.Status)
		fmt.Printf("  Priority: P%d\n", item.Priority)
		if item.ClaimedBy != "" {
			fmt.Printf("  Claimed by: %s\n", item.ClaimedBy)
		}
		if item.Description != "" {
			fmt.Printf("  Description: %s\n", item.Description)
		}
		fmt.Printf("  Created: %s\n", item.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("  Updated: %s\n", item.UpdatedAt.Format("2006-01-02 15:04"))

		if pid := store.Parent(s, id); pid != "" {
			if p, ok := s.Items[pid]; ok {
				fmt.Printf("  Parent: %s (%s)\n", pid, p.Title)
			}
		}
		printRelated(s, "Children:", store.Children(s, id))
		printRelated(s, "Blocked by:", store.Blockers(s, id))
		printRelated(s, "Blocks:", store.Blocking(s, id))
		return nil
	},
}

func printRelated(s *types.Store, header string, related []string) {
	if len(related) == 0 {
		return
	}
	fmt.Printf("  %s\n", header)
	for _, rid := range related {
		if r, ok := s.Items[rid]; ok {
			fmt.Printf("    %s [%s] %s\n", rid, r.Status, r.Title)
		}
	}
}

type itemDetail struct {
	*types.Item
	Blocked  bool     `json:"blocked"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
	Blockers []string `json:"blockers,omitempty"`
	Blocking []string `json:"blocking,omitempty"`
}

func showPayload(s *types.Store, item *types.Item) itemDetail {
	return itemDetail{
		Item:     item,
		Blocked:  store.IsBlocked(s, item.ID),
		Parent:   store.Parent(s, item.ID),
		Children: store.Children(s, item.ID),
		Blockers: store.Blockers(s, item.ID),
		Blocking: store.Blocking(s, item.ID),
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
}
