package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcoda",
	Short: "Backlog ordering and planning engine",
	Long: `mcoda manages a hierarchical backlog (epics, stories, tasks) and computes
a deterministic, dependency-respecting execution order for it.

Core capabilities:
- Builds the task dependency graph and reports unresolved references
- Classifies tasks by stage and injects foundation-first ordering
- Optionally asks an LLM agent to infer missing dependencies or refine ties
- Tolerates and reports dependency cycles instead of failing
- Aggregates the backlog into status lanes with rollups and diagnostics`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(backlogCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
