package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/stats"
)

// tickInterval is how often the dashboard refreshes.
const tickInterval = 500 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ExitMsg reports the terminal outcome of the execution.
type ExitMsg struct {
	Kind     process.OutcomeKind
	ExitCode int
	Err      error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// StatsSource provides execution statistics.
type StatsSource interface {
	Snapshot() *stats.Snapshot
}

// Config holds TUI configuration.
type Config struct {
	Command     string
	MetricsAddr string

	// InputDuration is the duration of the input, if known. It turns the
	// output time into a progress bar.
	InputDuration time.Duration

	StatsSource StatsSource
	Tail        *logging.Tail

	// Current returns the running process, nil before spawn and after
	// exit.
	Current func() process.Controller
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	command       string
	metricsAddr   string
	inputDuration time.Duration

	// Sources
	statsSource StatsSource
	tail        *logging.Tail
	current     func() process.Controller

	// Current state
	snapshot     *stats.Snapshot
	entries      []logging.Entry
	state        process.State
	stopping     string
	exit         *ExitMsg
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		command:       cfg.Command,
		metricsAddr:   cfg.MetricsAddr,
		inputDuration: cfg.InputDuration,
		statsSource:   cfg.StatsSource,
		tail:          cfg.Tail,
		current:       cfg.Current,
		startTime:     time.Now(),
		lastUpdate:    time.Now(),
		width:         80,
		height:        24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			if m.exit != nil {
				m.quitting = true
				return m, tea.Quit
			}
			m.stop(false)
			return m, nil
		case "k", "ctrl+c":
			if m.exit != nil {
				m.quitting = true
				return m, tea.Quit
			}
			m.stop(true)
			return m, nil
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case ExitMsg:
		m.exit = &msg
		m.state = process.StateExited
		m.refresh()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// stop asks the running process to stop.
func (m *Model) stop(forceful bool) {
	if m.current == nil {
		return
	}
	h := m.current()
	if h == nil {
		return
	}
	if forceful {
		m.stopping = "kill"
		h.StopForcefully()
	} else {
		m.stopping = "graceful"
		h.StopGracefully()
	}
}

// refresh pulls the latest statistics, log entries and state.
func (m *Model) refresh() {
	if m.statsSource != nil {
		m.snapshot = m.statsSource.Snapshot()
	}
	if m.tail != nil {
		m.entries = m.tail.Recent(m.tailLines())
	}
	if m.exit == nil && m.current != nil {
		if h := m.current(); h != nil {
			m.state = h.State()
		}
	}
	m.lastUpdate = time.Now()
}

// tailLines is how many log lines fit under the other panels.
func (m Model) tailLines() int {
	if m.detailedView {
		return max(m.height-8, 5)
	}
	return max(m.height-22, 3)
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after tickInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	if m.snapshot != nil {
		return m.snapshot.Elapsed
	}
	return time.Since(m.startTime)
}

// Progress returns how much of the input was processed (0.0 to 1.0), or
// -1 when the input duration is unknown.
func (m Model) Progress() float64 {
	if m.inputDuration <= 0 || m.snapshot == nil || m.snapshot.Progress == nil {
		return -1
	}
	p := float64(m.snapshot.Progress.OutTimeDuration()) / float64(m.inputDuration)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// Exited reports whether the execution has finished.
func (m Model) Exited() bool {
	return m.exit != nil
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendExit reports the outcome to the TUI.
func SendExit(p *tea.Program, msg ExitMsg) {
	if p != nil {
		p.Send(msg)
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
