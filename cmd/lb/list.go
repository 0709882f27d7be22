package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
	"golang.org/x/term"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		tree, _ := cmd.Flags().GetBool("tree")
		typeName, _ := cmd.Flags().GetString("type")
		statusName, _ := cmd.Flags().GetString("status")

		var typeFilter types.ItemType
		if typeName != "" {
			t, err := types.ParseItemType(typeName)
			if err != nil {
				return err
			}
			typeFilter = t
		}
		var statusFilter types.Status
		if statusName != "" {
			st, err := types.ParseStatus(statusName)
			if err != nil {
				return err
			}
			statusFilter = st
		}

		repo, err := openRepo()
		if err != nil {
			return err
		}
		s, _, err := loadStore(repo)
		if err != nil {
			return err
		}

		if jsonOutput {
			var out []*types.Item
			for _, item := range sortedItems(s) {
				if shouldShow(item, all, typeFilter, statusFilter) {
					out = append(out, item)
				}
			}
			return outputJSON(out)
		}

		if tree {
			for _, root := range store.RootItems(s) {
				printTreeItem(s, root.ID, 0, all, typeFilter, statusFilter)
			}
			return nil
		}

		printListHeader()
		for _, item := range sortedItems(s) {
			if shouldShow(item, all, typeFilter, statusFilter) {
				printListRow(item)
			}
		}
		return nil
	},
}

func sortedItems(s *types.Store) []*types.Item {
	items := make([]*types.Item, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func shouldShow(item *types.Item, all bool, typeFilter types.ItemType, statusFilter types.Status) bool {
	if !all && statusFilter == "" && item.Status == types.StatusClosed {
		return false
	}
	if typeFilter != "" && item.ItemType != typeFilter {
		return false
	}
	if statusFilter != "" && item.Status != statusFilter {
		return false
	}
	return true
}

// terminalWidth returns the width to fit rows into, defaulting when
// stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func printListHeader() {
	fmt.Printf("%-10s %-8s %-14s %-4s TITLE\n", "ID", "TYPE", "STATUS", "PRI")
	fmt.Println(strings.Repeat("-", 60))
}

func printListRow(item *types.Item) {
	status := string(item.Status)
	if item.ClaimedBy != "" {
		status = "open (claimed)"
	}
	// ID + type + status + priority columns take 40 characters.
	title := truncate(item.Title, terminalWidth()-40)
	fmt.Printf("%-10s %-8s %-14s %-4s %s\n",
		item.ID, item.ItemType, status, fmt.Sprintf("P%d", item.Priority), title)
}

func printTreeItem(s *types.Store, id string, depth int, all bool, typeFilter types.ItemType, statusFilter types.Status) {
	item, ok := s.Items[id]
	if !ok {
		return
	}
	childDepth := depth
	if shouldShow(item, all, typeFilter, statusFilter) {
		claimed := ""
		if item.ClaimedBy != "" {
			claimed = " *claimed*"
		}
		indent := strings.Repeat("  ", depth)
		fmt.Printf("%s%s [%s] P%d %s (%s)%s\n",
			indent, item.ID, item.Status, item.Priority, item.Title, item.ItemType, claimed)
		childDepth = depth + 1
	}
	for _, child := range store.Children(s, id) {
		printTreeItem(s, child, childDepth, all, typeFilter, statusFilter)
	}
}

func init() {
	listCmd.Flags().Bool("all", false, "Show all statuses (default hides closed)")
	listCmd.Flags().StringP("type", "t", "", "Filter by item type")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().Bool("tree", false, "Display as tree")
	rootCmd.AddCommand(listCmd)
}
