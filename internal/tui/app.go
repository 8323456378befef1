// Bubbletea monitor board for one session. Same snapshot reads as the
// plain monitor, rendered as a live table with the session logbook
// tailed underneath. Follows The Elm Architecture: state in the model,
// a tick message drives periodic refresh, View renders a string.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mtavish/conclave/internal/agent"
	"github.com/mtavish/conclave/internal/logbook"
	"github.com/mtavish/conclave/internal/monitor"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
)

const logTailLines = 8

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	logHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	logBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))
)

type snapshotMsg struct {
	states   []agent.State
	roster   *roster.Roster
	logLines []string
	err      error
}

// App is the monitor TUI model.
type App struct {
	store    *session.Store
	book     *logbook.Logbook
	meta     session.Session
	interval time.Duration

	table   table.Model
	states  []agent.State
	roster  *roster.Roster
	logTail []string
	lastErr string

	width  int
	height int
}

// AppOption customizes App construction.
type AppOption func(*App)

// WithInterval overrides the refresh interval.
func WithInterval(interval time.Duration) AppOption {
	return func(a *App) {
		if interval > 0 {
			a.interval = interval
		}
	}
}

// NewApp builds the monitor board for one session. The metadata read
// happens once here; everything else refreshes per tick.
func NewApp(store *session.Store, opts ...AppOption) (*App, error) {
	meta, err := store.ReadSession()
	if err != nil {
		return nil, err
	}
	book, err := logbook.ForSession(store.Handle().Dir)
	if err != nil {
		book = nil
	}
	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "ID", Width: 4},
		{Title: "Agent", Width: 16},
		{Title: "Role", Width: 24},
		{Title: "Status", Width: 10},
		{Title: "Activity", Width: 8},
		{Title: "Task", Width: 32},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(3, meta.AgentCount+1)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	t.SetStyles(styles)

	app := &App{
		store:    store,
		book:     book,
		meta:     meta,
		interval: monitor.DefaultInterval,
		table:    t,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app, nil
}

// Run starts the monitor board in the alternate screen and blocks
// until the user quits.
func Run(store *session.Store, opts ...AppOption) error {
	app, err := NewApp(store, opts...)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.fetchSnapshot()
}

// Update reacts to ticks, key presses, and resizes.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case snapshotMsg:
		if msg.err != nil {
			a.lastErr = msg.err.Error()
		} else {
			a.lastErr = ""
			a.states = msg.states
			a.roster = msg.roster
			a.logTail = msg.logLines
			a.table.SetRows(a.buildRows())
		}
		return a, a.scheduleRefresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "r":
			return a, a.fetchSnapshot()
		}
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

// View renders the board.
func (a *App) View() string {
	header := headerStyle.Render(fmt.Sprintf("⬡ CONCLAVE · %s · %d agent(s)", a.meta.Name, a.meta.AgentCount))
	sections := []string{header, boxStyle.Render(a.table.View())}
	if a.lastErr != "" {
		sections = append(sections, errStyle.Render("⚠ "+a.lastErr))
	}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, footerStyle.Render("r → refresh now    q → quit"))
	return strings.Join(sections, "\n")
}

func (a *App) buildRows() []table.Row {
	rows := make([]table.Row, 0, len(a.states))
	for _, state := range a.states {
		activity := "never"
		if state.EverActive() {
			activity = "active"
		}
		role := ""
		if a.roster != nil {
			if def, ok := a.roster.FindByID(state.AgentID); ok {
				role = def.Role
			}
		}
		rows = append(rows, table.Row{
			state.Status.Icon(),
			fmt.Sprintf("%d", state.AgentID),
			state.AgentName,
			role,
			string(state.Status),
			activity,
			state.Task(),
		})
	}
	return rows
}

func (a *App) renderLogPanel() string {
	if len(a.logTail) == 0 {
		return ""
	}
	head := logHeadStyle.Render("LOG · " + logbook.FileName)
	body := logBodyStyle.Render(strings.Join(a.logTail, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func (a *App) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		return a.buildSnapshot()
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return a.buildSnapshot()
	})
}

// buildSnapshot gathers one tick's data. Roster and log reads may fail
// without failing the snapshot; only the state listing error surfaces,
// and even that just becomes a banner on the next render.
func (a *App) buildSnapshot() snapshotMsg {
	states, err := a.store.ListAgentStates()
	if err != nil {
		return snapshotMsg{err: err}
	}
	r, err := a.store.ReadRoster()
	if err != nil {
		r = nil
	}
	var logLines []string
	if a.book != nil {
		logLines = a.book.Tail(logTailLines)
	}
	return snapshotMsg{states: states, roster: r, logLines: logLines}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
