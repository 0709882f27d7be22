package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

var primeCmd = &cobra.Command{
	Use:   "prime",
	Short: "Output AI-optimized context for Claude Code hooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			// Hooks run everywhere; stay silent outside a repo.
			return nil
		}
		s, _, err := loadStore(repo)
		if err != nil {
			// No store yet, nothing to prime.
			return nil
		}
		printPrimeContext(s)
		return nil
	},
}

func printPrimeContext(s *types.Store) {
	fmt.Println("# Litebrite Tracker Active")

	var claimed []*types.Item
	for _, item := range s.Items {
		if item.ClaimedBy != "" && item.Status == types.StatusOpen {
			claimed = append(claimed, item)
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID < claimed[j].ID })
	if len(claimed) > 0 {
		fmt.Println("\n## Claimed")
		for _, item := range claimed {
			fmt.Printf("- %s P%d [%s] %s (by %s)\n",
				item.ID, item.Priority, item.ItemType, item.Title, item.ClaimedBy)
		}
	}

	ready := store.ReadyItems(s)
	if len(ready) > 0 {
		fmt.Println("\n## Ready (unblocked, unclaimed)")
		for _, item := range ready {
			fmt.Printf("- %s P%d [%s] %s\n", item.ID, item.Priority, item.ItemType, item.Title)
		}
	}

	fmt.Print(`
## Session Protocol
1. ` + "`lb ready`" + ` — find unblocked, unclaimed work
2. ` + "`lb show <id>`" + ` — get full context
3. ` + "`lb claim <id>`" + ` — claim work (syncs with remote)
4. Do the work, commit code
5. ` + "`lb close <id>`" + ` — mark complete (clears claim)
6. ` + "`lb sync`" + ` — push changes to remote

## CLI Quick Reference
- ` + "`lb create <title>`" + ` — new item (-t epic/feature/task, -p <pri>, --parent <id>, -d <desc>)
- ` + "`lb show <id>`" + ` — item details with deps and children
- ` + "`lb list`" + ` — all open items (--all, -t <type>, -s <status>, --tree)
- ` + "`lb update <id>`" + ` — update fields (--title, --status, -t, -p, -d, --parent)
- ` + "`lb close <id>`" + ` — close item (clears claim)
- ` + "`lb delete <id>`" + ` — delete item and deps
- ` + "`lb dep add <id> --blocks <id>`" + ` — add blocking dep
- ` + "`lb dep rm <from> <to>`" + ` — remove dep
- ` + "`lb ready`" + ` — open + unblocked + unclaimed by priority
- ` + "`lb claim <id>`" + ` — claim item (fetch + push)
- ` + "`lb unclaim <id>`" + ` — release claim (fetch + push)
- ` + "`lb sync`" + ` — sync with remote (fetch + merge + push)
- IDs: ` + "`lb-XXXX`" + `, use any unique prefix
`)
}

func init() {
	rootCmd.AddCommand(primeCmd)
}
