// Package tui renders the mcoda backlog board: one column per lane with
// per-lane rollups, refreshed live when the workspace database changes.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mcoda/mcoda/internal/backlog"
	"github.com/mcoda/mcoda/pkg/models"
)

// SnapshotMsg delivers a freshly loaded backlog snapshot.
type SnapshotMsg struct {
	Snapshot *backlog.Snapshot
	Err      error
}

// RefreshMsg signals that the workspace database changed on disk.
type RefreshMsg struct{}

// tickMsg drives the periodic fallback reload.
type tickMsg time.Time

// Loader produces a backlog snapshot. The board never talks to the store
// directly.
type Loader func(ctx context.Context) (*backlog.Snapshot, error)

// boardLanes is the column order.
var boardLanes = []models.Lane{
	models.LaneImplementation, models.LaneReview, models.LaneQA, models.LaneDone,
}

// Board is the bubbletea model for the backlog board.
type Board struct {
	loader  Loader
	watcher *DBWatcher
	refresh time.Duration

	snapshot *backlog.Snapshot
	err      error
	loading  bool
	quitting bool
	width    int
	height   int

	spinner spinner.Model

	// Styles
	headerStyle  lipgloss.Style
	laneStyle    lipgloss.Style
	laneTitle    lipgloss.Style
	taskKeyStyle lipgloss.Style
	cycleStyle   lipgloss.Style
	warningStyle lipgloss.Style
	hintStyle    lipgloss.Style
	errorStyle   lipgloss.Style
}

// NewBoard creates a board model. watcher may be nil; refresh is the
// periodic reload interval and may be zero to rely on the watcher alone.
func NewBoard(loader Loader, watcher *DBWatcher, refresh time.Duration) *Board {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Board{
		loader:  loader,
		watcher: watcher,
		refresh: refresh,
		loading: true,
		spinner: sp,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")),

		laneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),

		laneTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),

		taskKeyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		cycleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
}

// Init implements tea.Model.
func (b *Board) Init() tea.Cmd {
	cmds := []tea.Cmd{b.spinner.Tick, b.load()}
	if cmd := b.waitForChange(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if cmd := b.tick(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			b.quitting = true
			return b, tea.Quit
		case "r":
			b.loading = true
			return b, tea.Batch(b.spinner.Tick, b.load())
		}

	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height

	case SnapshotMsg:
		b.loading = false
		b.snapshot = msg.Snapshot
		b.err = msg.Err

	case RefreshMsg:
		b.loading = true
		cmds := []tea.Cmd{b.spinner.Tick, b.load()}
		if cmd := b.waitForChange(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return b, tea.Batch(cmds...)

	case tickMsg:
		cmds := []tea.Cmd{b.tick()}
		if !b.loading {
			b.loading = true
			cmds = append(cmds, b.spinner.Tick, b.load())
		}
		return b, tea.Batch(cmds...)

	case spinner.TickMsg:
		if b.loading {
			var cmd tea.Cmd
			b.spinner, cmd = b.spinner.Update(msg)
			return b, cmd
		}
	}

	return b, nil
}

// load returns a command that fetches a snapshot.
func (b *Board) load() tea.Cmd {
	return func() tea.Msg {
		snap, err := b.loader(context.Background())
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

// tick schedules the next periodic reload.
func (b *Board) tick() tea.Cmd {
	if b.refresh <= 0 {
		return nil
	}
	return tea.Tick(b.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on the watcher and converts its signal into a
// refresh message.
func (b *Board) waitForChange() tea.Cmd {
	if b.watcher == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-b.watcher.Changes(); !ok {
			return nil
		}
		return RefreshMsg{}
	}
}

// View implements tea.Model.
func (b *Board) View() string {
	if b.quitting {
		return ""
	}
	if b.err != nil {
		return b.errorStyle.Render("error: "+b.err.Error()) + "\n" +
			b.hintStyle.Render("r retry │ q quit") + "\n"
	}
	if b.snapshot == nil {
		return b.spinner.View() + " loading backlog...\n"
	}

	var sb strings.Builder
	sb.WriteString(b.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(b.renderLanes())
	sb.WriteString("\n")
	for _, w := range b.snapshot.Warnings {
		sb.WriteString(b.warningStyle.Render("! "+w) + "\n")
	}
	sb.WriteString(b.hintStyle.Render("r refresh │ q quit") + "\n")
	return sb.String()
}

func (b *Board) renderHeader() string {
	snap := b.snapshot
	title := snap.Project.Key
	if snap.Epic != nil {
		title += " / " + snap.Epic.Key
	}
	header := fmt.Sprintf("%s · %d tasks, %.1f points",
		title, snap.Total.Tasks, snap.Total.StoryPoints)
	if b.loading {
		header = b.spinner.View() + " " + header
	}
	return b.headerStyle.Render(header)
}

func (b *Board) renderLanes() string {
	laneWidth := 28
	if b.width > 0 {
		if w := b.width/len(boardLanes) - 2; w > 16 {
			laneWidth = w
		}
	}

	columns := make([]string, 0, len(boardLanes))
	for _, lane := range boardLanes {
		columns = append(columns, b.renderLane(lane, laneWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func (b *Board) renderLane(lane models.Lane, width int) string {
	totals := b.snapshot.Lanes[lane]

	var sb strings.Builder
	sb.WriteString(b.laneTitle.Render(fmt.Sprintf("%s (%d)", lane, totals.Tasks)))
	sb.WriteString("\n")

	for _, entry := range b.snapshot.Tasks {
		if entry.Lane != lane {
			continue
		}
		line := b.taskKeyStyle.Render(entry.Task.Key) + " " +
			truncate(entry.Task.Title, width-len(entry.Task.Key)-4)
		if entry.CycleMember {
			line += " " + b.cycleStyle.Render("⟳")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return b.laneStyle.Width(width).Render(sb.String())
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
