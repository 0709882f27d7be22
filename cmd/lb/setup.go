package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set up integrations",
}

var setupClaudeCmd = &cobra.Command{
	Use:   "claude",
	Short: "Set up Claude Code integration (hooks + permissions)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupClaude(".")
	},
}

// setupClaude merges lb permissions and prime hooks into
// .claude/settings.local.json without disturbing existing entries.
// Running it twice changes nothing.
func setupClaude(base string) error {
	claudeDir := filepath.Join(base, ".claude")
	if err := os.MkdirAll(claudeDir, 0755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}

	settingsPath := filepath.Join(claudeDir, "settings.local.json")
	settings := map[string]interface{}{}
	if data, err := os.ReadFile(settingsPath); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parse settings: %w", err)
		}
	}

	mergePermissions(settings)
	mergeHooks(settings)

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(settingsPath, append(out, '\n'), 0644); err != nil {
		return err
	}
	fmt.Println("wrote .claude/settings.local.json (hooks + permissions)")
	return nil
}

func mergePermissions(settings map[string]interface{}) {
	perms, _ := settings["permissions"].(map[string]interface{})
	if perms == nil {
		perms = map[string]interface{}{}
		settings["permissions"] = perms
	}
	allow, _ := perms["allow"].([]interface{})
	for _, want := range []string{"Bash(lb:*)"} {
		found := false
		for _, have := range allow {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			allow = append(allow, want)
		}
	}
	perms["allow"] = allow
}

func mergeHooks(settings map[string]interface{}) {
	hookGroup := func() map[string]interface{} {
		return map[string]interface{}{
			"matcher": "*",
			"hooks": []interface{}{
				map[string]interface{}{"type": "command", "command": "lb prime"},
			},
		}
	}

	hooks, _ := settings["hooks"].(map[string]interface{})
	if hooks == nil {
		hooks = map[string]interface{}{}
		settings["hooks"] = hooks
	}
	for _, event := range []string{"SessionStart", "PreCompact"} {
		groups, _ := hooks[event].([]interface{})
		if !hasPrimeHook(groups) {
			groups = append(groups, hookGroup())
		}
		hooks[event] = groups
	}
}

func hasPrimeHook(groups []interface{}) bool {
	for _, g := range groups {
		group, ok := g.(map[string]interface{})
		if !ok {
			continue
		}
		inner, _ := group["hooks"].([]interface{})
		for _, h := range inner {
			hook, ok := h.(map[string]interface{})
			if !ok {
				continue
			}
			if hook["command"] == "lb prime" {
				return true
			}
		}
	}
	return false
}

func init() {
	setupCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(setupCmd)
}
