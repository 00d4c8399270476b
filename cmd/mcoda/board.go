package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mcoda/mcoda/internal/backlog"
	"github.com/mcoda/mcoda/internal/config"
	"github.com/mcoda/mcoda/internal/store"
	"github.com/mcoda/mcoda/internal/tui"
)

var (
	boardProject string
	boardEpic    string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the live backlog board",
	Long: `Render the backlog as a lane board in the terminal. The board refreshes
automatically when the workspace database changes; press r to reload and q to
quit.`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardProject, "project", "", "Project key (required)")
	boardCmd.Flags().StringVar(&boardEpic, "epic", "", "Limit to one epic by key")
	boardCmd.MarkFlagRequired("project")
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer db.Close()

	agg := buildAggregator(cfg, db)
	loader := func(ctx context.Context) (*backlog.Snapshot, error) {
		return agg.Build(ctx, backlog.Request{
			ProjectKey: boardProject,
			EpicKey:    boardEpic,
		})
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	watcher, err := tui.WatchWorkspaceDB(store.WorkspaceDBPath(cwd))
	if err != nil {
		return fmt.Errorf("watch workspace database: %w", err)
	}
	defer watcher.Close()

	program := tea.NewProgram(tui.NewBoard(loader, watcher, cfg.TUI.RefreshRate), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
