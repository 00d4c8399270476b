package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcoda/mcoda/internal/backlog"
	"github.com/mcoda/mcoda/internal/config"
	"github.com/mcoda/mcoda/pkg/models"
)

var (
	backlogProject  string
	backlogEpic     string
	backlogStatuses []string
	backlogDepOrder bool
	backlogVerbose  bool
	backlogJSONFlag bool
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Show the backlog grouped into status lanes",
	Long: `Aggregate the backlog into lanes (implementation, review, qa, done)
with task and story-point rollups per story, epic, and lane.

With --dependency-order the task list is ordered by the scheduler instead of
the lane heuristic; on any failure the view falls back to the default order
with a warning.`,
	RunE: runBacklog,
}

func init() {
	backlogCmd.Flags().StringVar(&backlogProject, "project", "", "Project key (required)")
	backlogCmd.Flags().StringVar(&backlogEpic, "epic", "", "Limit to one epic by key")
	backlogCmd.Flags().StringSliceVar(&backlogStatuses, "status", nil, "Limit to tasks in these statuses")
	backlogCmd.Flags().BoolVar(&backlogDepOrder, "dependency-order", false, "Order tasks by the scheduler")
	backlogCmd.Flags().BoolVarP(&backlogVerbose, "verbose", "v", false, "Include error detail in warnings")
	backlogCmd.Flags().BoolVar(&backlogJSONFlag, "json", false, "Emit the snapshot as JSON")
	backlogCmd.MarkFlagRequired("project")
}

func runBacklog(cmd *cobra.Command, args []string) error {
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
	snap, err := agg.Build(cmd.Context(), backlog.Request{
		ProjectKey:      backlogProject,
		EpicKey:         backlogEpic,
		Statuses:        parseStatuses(backlogStatuses),
		DependencyOrder: backlogDepOrder,
		Verbose:         backlogVerbose,
	})
	if err != nil {
		return err
	}

	if backlogJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printBacklog(snap)
	printWarnings(snap.Warnings)
	return nil
}

func printBacklog(snap *backlog.Snapshot) {
	header := fmt.Sprintf("Backlog for %s: %d tasks, %.1f points",
		snap.Project.Key, snap.Total.Tasks, snap.Total.StoryPoints)
	fmt.Println(header)

	for _, lane := range []models.Lane{
		models.LaneImplementation, models.LaneReview, models.LaneQA, models.LaneDone,
	} {
		r := snap.Lanes[lane]
		fmt.Printf("  %-15s %3d tasks  %6.1f pts\n", lane, r.Tasks, r.StoryPoints)
	}

	for _, epic := range snap.Epics {
		fmt.Printf("\n%s %s (%d tasks, %.1f pts)\n",
			color.CyanString(epic.Epic.Key), epic.Epic.Title, epic.Total.Tasks, epic.Total.StoryPoints)
		for _, story := range epic.Stories {
			fmt.Printf("  %s %s (%d tasks, %.1f pts)\n",
				story.Story.Key, story.Story.Title, story.Total.Tasks, story.Total.StoryPoints)
			for _, entry := range story.Tasks {
				marker := " "
				if entry.CycleMember {
					marker = color.YellowString("⟳")
				}
				fmt.Printf("    %s %-12s %-14s %s\n", marker, entry.Task.Key, entry.Lane, entry.Task.Title)
			}
		}
	}

	if len(snap.CrossLane) > 0 {
		fmt.Println("\nCross-lane dependencies:")
		for _, c := range snap.CrossLane {
			fmt.Printf("  %s (%s) depends on %s (%s)\n",
				c.TaskKey, c.TaskLane, c.DependsOnKey, c.DependencyLane)
		}
	}
}
