package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/litebrite/internal/config"
	"github.com/steveyegge/litebrite/internal/debug"
	"github.com/steveyegge/litebrite/internal/git"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/lockfile"
	"github.com/steveyegge/litebrite/internal/oplog"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/sync"
	"github.com/steveyegge/litebrite/internal/types"
)

var (
	jsonOutput bool
	noColor    bool
	actorFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "lb",
	Short: "lb - Lightweight git-backed issue tracker",
	Long:  `Work items stored as a JSON snapshot on a dedicated git branch. No server, no database; the commit log is the history and git remotes are the transport.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		// Priority: flags > config file + env vars > defaults
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("no-color") {
			noColor = config.GetBool("no-color")
		}
		if noColor {
			color.NoColor = true
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Override the actor identity for claims")
}

// exitCode maps the typed error taxonomy to distinct process exit codes
// so scripts and hooks can branch without parsing messages.
func exitCode(err error) int {
	var notFound *ids.NotFoundError
	var ambiguous *ids.AmbiguousError
	var alreadyClaimed *sync.AlreadyClaimedError
	var cycle *store.CycleError
	var conflict *sync.SyncConflictError
	var parse *store.ParseError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &notFound):
		return 2
	case errors.As(err, &ambiguous):
		return 3
	case errors.As(err, &alreadyClaimed):
		return 4
	case errors.As(err, &cycle):
		return 5
	case errors.As(err, &conflict):
		return 6
	case errors.As(err, &parse):
		return 7
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func openRepo() (*git.Repo, error) {
	repo := git.Open(".", config.GetString("branch"))
	if !repo.IsRepo() {
		return nil, fmt.Errorf("not a git repository")
	}
	return repo, nil
}

func loadStore(repo *git.Repo) (*types.Store, string, error) {
	tip, err := repo.LocalTip()
	if err != nil {
		return nil, "", fmt.Errorf("litebrite not initialized, run `lb init` first")
	}
	data, err := repo.ReadStore()
	if err != nil {
		return nil, "", err
	}
	s, err := store.Load(data)
	if err != nil {
		return nil, "", err
	}
	return s, tip, nil
}

// mutateStore runs fn against the current snapshot under the process lock
// and commits the result with the message fn returns. The lock covers only
// the local read-modify-commit section.
func mutateStore(fn func(s *types.Store) (string, error)) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	gitDir, err := repo.GitDir()
	if err != nil {
		return err
	}
	lock, err := lockfile.Acquire(gitDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	s, tip, err := loadStore(repo)
	if err != nil {
		return err
	}
	message, err := fn(s)
	if err != nil {
		return err
	}
	data, err := store.Dump(s)
	if err != nil {
		return err
	}
	return repo.WriteStore(data, message, tip)
}

// actorName resolves the claim identity: --actor flag, then config, then
// the git user.
func actorName(repo *git.Repo) (string, error) {
	if actorFlag != "" {
		return actorFlag, nil
	}
	if name := config.GetString("actor"); name != "" {
		return name, nil
	}
	return repo.UserName()
}

func newEngine(repo *git.Repo) (*sync.Engine, error) {
	actor, err := actorName(repo)
	if err != nil {
		return nil, err
	}
	var opLog *debug.OpLogger
	if gitDir, err := repo.GitDir(); err == nil {
		opLog = debug.NewOpLogger(filepath.Join(gitDir, "litebrite", "sync.log"))
	}
	return sync.NewEngine(repo, actor, config.GetInt("sync-retries"), opLog), nil
}

// recordOp appends to the local audit trail. Best effort: a broken audit
// database never fails the operation it describes.
func recordOp(repo *git.Repo, op, itemID, detail string) {
	gitDir, err := repo.GitDir()
	if err != nil {
		return
	}
	actor, err := actorName(repo)
	if err != nil {
		actor = "unknown"
	}
	l, err := oplog.Open(filepath.Join(gitDir, "litebrite", "oplog.db"))
	if err != nil {
		debug.Logf("oplog open failed: %v\n", err)
		return
	}
	defer l.Close()
	if err := l.Record(op, actor, itemID, detail); err != nil {
		debug.Logf("oplog record failed: %v\n", err)
	}
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
