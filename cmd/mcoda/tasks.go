package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcoda/mcoda/internal/agent"
	"github.com/mcoda/mcoda/internal/config"
	"github.com/mcoda/mcoda/internal/ordering"
	"github.com/mcoda/mcoda/pkg/models"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Task-level operations",
}

var (
	orderProject   string
	orderEpic      string
	orderStory     string
	orderStatuses  []string
	orderApply     bool
	orderInferDeps bool
	orderAgentRank bool
	orderAgent     string
	orderJSON      bool
	orderStream    bool
	orderNoTelem   bool
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Compute a dependency-respecting task order",
	Long: `Compute a deterministic execution order for the selected tasks.

The order never violates declared or inferred dependencies. Cycles are
tolerated: their members are flagged and appended instead of failing the
run. With --apply, dense task priorities, derived epic/story priorities,
and ordering metadata are written back in one transaction; without it the
run is a dry run that writes nothing.`,
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().StringVar(&orderProject, "project", "", "Project key (required)")
	orderCmd.Flags().StringVar(&orderEpic, "epic", "", "Limit to one epic by key")
	orderCmd.Flags().StringVar(&orderStory, "story", "", "Limit to one story by key")
	orderCmd.Flags().StringSliceVar(&orderStatuses, "status", nil, "Limit to tasks in these statuses")
	orderCmd.Flags().BoolVar(&orderApply, "apply", false, "Persist priorities and metadata")
	orderCmd.Flags().BoolVar(&orderInferDeps, "infer-deps", false, "Ask the agent to infer missing dependencies")
	orderCmd.Flags().BoolVar(&orderAgentRank, "agent-rank", false, "Ask the agent to refine tie-breaks")
	orderCmd.Flags().StringVar(&orderAgent, "agent", "", "Override the agent slug for this run")
	orderCmd.Flags().BoolVar(&orderJSON, "json", false, "Emit the result as JSON")
	orderCmd.Flags().BoolVar(&orderStream, "stream", false, "Stream agent output to stderr")
	orderCmd.Flags().BoolVar(&orderNoTelem, "no-telemetry", false, "Skip command-run and job recording")
	orderCmd.MarkFlagRequired("project")

	tasksCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer db.Close()

	withAgent := orderInferDeps || orderAgentRank
	svc, err := buildService(cfg, db, withAgent)
	if err != nil {
		return err
	}

	cwd, _ := os.Getwd()
	req := ordering.Request{
		Workspace:         cwd,
		ProjectKey:        orderProject,
		EpicKey:           orderEpic,
		StoryKey:          orderStory,
		Statuses:          parseStatuses(orderStatuses),
		Apply:             orderApply,
		InferDependencies: orderInferDeps,
		UseAgentRanking:   orderAgentRank,
		OverrideAgentSlug: orderAgent,
		RecordTelemetry:   cfg.Telemetry.Enabled && !orderNoTelem,
	}
	if orderStream {
		req.StreamSink = func(c agent.Chunk) {
			fmt.Fprint(os.Stderr, c.Output)
		}
	}

	res, err := svc.OrderTasks(cmd.Context(), req)
	if err != nil {
		return err
	}

	if orderJSON {
		return printOrderJSON(res)
	}
	printOrderTable(res)
	printWarnings(res.Warnings)
	return nil
}

func parseStatuses(raw []string) []models.TaskStatus {
	var out []models.TaskStatus
	for _, s := range raw {
		out = append(out, models.TaskStatus(strings.ToLower(strings.TrimSpace(s))))
	}
	return out
}

func printOrderTable(res *ordering.Result) {
	header := fmt.Sprintf("Order for %s", res.Project.Key)
	if res.Epic != nil {
		header += " / " + res.Epic.Key
	}
	if res.Story != nil {
		header += " / " + res.Story.Key
	}
	fmt.Println(header)

	if len(res.Ordered) == 0 {
		fmt.Println("  (no tasks)")
		return
	}

	for _, item := range res.Ordered {
		line := fmt.Sprintf("%3d. %-12s %s", item.Position, item.Task.Key, item.Task.Title)
		notes := orderNotes(item)
		if len(notes) > 0 {
			line += "  [" + strings.Join(notes, ", ") + "]"
		}
		fmt.Println(line)
	}
	if res.Cycle {
		fmt.Println(color.YellowString("note: cycle members are appended in comparator order"))
	}
}

func orderNotes(item ordering.TaskOrderItem) []string {
	var notes []string
	if item.Meta.Foundation {
		notes = append(notes, "foundation")
	}
	if item.Meta.Stage != "" {
		notes = append(notes, string(item.Meta.Stage))
	}
	notes = append(notes, fmt.Sprintf("%s %.2f", item.Meta.ComplexityBand, item.Meta.ComplexityScore))
	if item.CycleMember {
		notes = append(notes, "cycle")
	}
	if len(item.MissingDependencies) > 0 {
		notes = append(notes, "missing deps: "+strings.Join(item.MissingDependencies, " "))
	}
	return notes
}

func printOrderJSON(res *ordering.Result) error {
	type jsonItem struct {
		Position    int                     `json:"position"`
		Key         string                  `json:"key"`
		Title       string                  `json:"title"`
		Priority    *int                    `json:"priority,omitempty"`
		CycleMember bool                    `json:"cycle_member,omitempty"`
		MissingDeps []string                `json:"missing_dependencies,omitempty"`
		Ordering    models.OrderingMetadata `json:"ordering"`
	}
	out := struct {
		Project  string     `json:"project"`
		Cycle    bool       `json:"cycle"`
		Items    []jsonItem `json:"items"`
		Warnings []string   `json:"warnings,omitempty"`
	}{
		Project:  res.Project.Key,
		Cycle:    res.Cycle,
		Warnings: res.Warnings,
	}
	for _, item := range res.Ordered {
		out.Items = append(out.Items, jsonItem{
			Position:    item.Position,
			Key:         item.Task.Key,
			Title:       item.Task.Title,
			Priority:    item.Task.Priority,
			CycleMember: item.CycleMember,
			MissingDeps: item.MissingDependencies,
			Ordering:    item.Meta,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, color.YellowString("warning: %s", w))
	}
}
