package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add <blocker> --blocks <id>",
	Short: "Add a blocking dependency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blocks, _ := cmd.Flags().GetString("blocks")

		var blocker, blocked string
		err := mutateStore(func(s *types.Store) (string, error) {
			var err error
			blocker, err = ids.Resolve(s, args[0])
			if err != nil {
				return "", err
			}
			blocked, err = ids.Resolve(s, blocks)
			if err != nil {
				return "", err
			}
			if err := store.AddBlockingDep(s, blocker, blocked); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s blocks %s", blocker, blocked), nil
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"blocker": blocker, "blocks": blocked})
		}
		fmt.Printf("%s now blocks %s\n", blocker, blocked)
		return nil
	},
}

var depRmCmd = &cobra.Command{
	Use:   "rm <from> <to>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := mutateStore(func(s *types.Store) (string, error) {
			from, err := ids.Resolve(s, args[0])
			if err != nil {
				return "", err
			}
			to, err := ids.Resolve(s, args[1])
			if err != nil {
				return "", err
			}
			if err := store.RemoveDep(s, from, to); err != nil {
				return "", err
			}
			return "Remove dependency", nil
		})
		if err != nil {
			return err
		}
		fmt.Println("removed dependency")
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List dependencies for an item",
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

		if jsonOutput {
			return outputJSON(map[string]interface{}{
				"parent":   store.Parent(s, id),
				"children": store.Children(s, id),
				"blockers": store.Blockers(s, id),
				"blocking": store.Blocking(s, id),
			})
		}

		if pid := store.Parent(s, id); pid != "" {
			if p, ok := s.Items[pid]; ok {
				fmt.Printf("parent: %s %s\n", pid, p.Title)
			}
		}
		if children := store.Children(s, id); len(children) > 0 {
			fmt.Println("children:")
			for _, cid := range children {
				if c, ok := s.Items[cid]; ok {
					fmt.Printf("  %s %s\n", cid, c.Title)
				}
			}
		}
		if blockers := store.Blockers(s, id); len(blockers) > 0 {
			fmt.Println("blocked by:")
			for _, bid := range blockers {
				if b, ok := s.Items[bid]; ok {
					fmt.Printf("  %s [%s] %s\n", bid, b.Status, b.Title)
				}
			}
		}
		if blocking := store.Blocking(s, id); len(blocking) > 0 {
			fmt.Println("blocks:")
			for _, bid := range blocking {
				if b, ok := s.Items[bid]; ok {
					fmt.Printf("  %s [%s] %s\n", bid, b.Status, b.Title)
				}
			}
		}
		return nil
	},
}

func init() {
	depAddCmd.Flags().String("blocks", "", "Item blocked by the first argument")
	_ = depAddCmd.MarkFlagRequired("blocks")
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRmCmd)
	depCmd.AddCommand(depListCmd)
	rootCmd.AddCommand(depCmd)
}
