package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iammorganparry/datachat/internal/model"
	"github.com/iammorganparry/datachat/internal/plot"
	"github.com/iammorganparry/datachat/internal/render"
	"github.com/iammorganparry/datachat/internal/session"
)

const (
	filePlaceholder     = "Path to a spreadsheet (.xlsx, .xls)"
	questionPlaceholder = "Ask a question about your data..."

	// header (2) + input box (3) + status bar (1) + spacer (1)
	chromeHeight = 7
)

// Messages
type opDoneMsg struct {
	kind      string
	entry     model.Entry
	committed bool
}

type chartWrittenMsg struct {
	entryID string
	path    string
	err     error
}

type spinnerTickMsg struct{}

// Spinner animation frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Available slash commands
var availableCommands = []struct {
	cmd  string
	desc string
}{
	{"/new", "Start over with a new file"},
	{"/help", "Show help"},
	{"/quit", "Quit"},
}

// Model is the root Bubble Tea model of the chat screen
type Model struct {
	// Terminal dimensions
	width  int
	height int
	ready  bool

	ctrl    *session.Controller
	painter *render.Painter
	charts  *plot.Writer // nil disables chart pages
	ctx     context.Context
	logger  *slog.Logger

	// Entry id -> written plot page. Shared with the painter's chart label.
	chartPaths map[string]string
	forwarded  map[string]bool

	input    textinput.Model
	viewport viewport.Model
	help     help.Model
	keys     KeyMap

	showHelp bool
	hint     string // One-shot status line message

	// Busy indicator
	opKind       string
	opStart      time.Time
	spinnerIndex int
}

// Option configures the model
type Option func(*Model)

// WithCharts forwards every chart entry to w
func WithCharts(w *plot.Writer) Option {
	return func(m *Model) { m.charts = w }
}

// WithPainter replaces the default painter. Chart labels are still wired to
// the written page paths.
func WithPainter(opts ...render.PainterOption) Option {
	return func(m *Model) {
		paths := m.chartPaths
		opts = append(opts, render.WithChartLabel(func(id string) string { return paths[id] }))
		m.painter = render.NewPainter(opts...)
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithContext sets the context service calls run under
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// New creates the chat screen around ctrl
func New(ctrl *session.Controller, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 0
	ti.Width = 80
	ti.Focus()

	m := Model{
		ctrl:       ctrl,
		ctx:        context.Background(),
		logger:     slog.Default(),
		chartPaths: make(map[string]string),
		forwarded:  make(map[string]bool),
		input:      ti,
		viewport:   viewport.New(80, 20),
		help:       help.New(),
		keys:       DefaultKeyMap(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.painter == nil {
		WithPainter()(&m)
	}
	m.syncPlaceholder()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// runOp performs the network part of an accepted operation off the update loop
func runOp(ctx context.Context, op *session.Op) tea.Cmd {
	return func() tea.Msg {
		entry, committed := op.Run(ctx)
		return opDoneMsg{kind: op.Kind(), entry: entry, committed: committed}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.input.Width = max(msg.Width-8, 10)
		m.help.Width = msg.Width
		m.painter.SetWidth(msg.Width - 2)
		m.refresh()

	case spinnerTickMsg:
		if m.ctrl.Busy() {
			m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
			cmds = append(cmds, spinnerTickCmd())
		}

	case opDoneMsg:
		m.opKind = ""
		if !msg.committed {
			m.logger.Debug("discarded stale outcome", "op", msg.kind)
			return m, nil
		}
		m.syncPlaceholder()
		m.refresh()
		if cmd := m.forwardChart(msg.entry); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case chartWrittenMsg:
		if msg.err != nil {
			m.logger.Warn("chart page failed", "entry_id", msg.entryID, "error", msg.err)
			m.hint = "Could not write chart page: " + msg.err.Error()
			return m, nil
		}
		m.chartPaths[msg.entryID] = msg.path
		m.refresh()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits, regardless of state
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Escape, m.keys.Help) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.NewFile):
		m.startNewFile()
		return m, nil

	case key.Matches(msg, m.keys.Help) && m.input.Value() == "":
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.hint = ""
	if m.ctrl.Phase() == session.PhaseDatasetBound {
		m.ctrl.SetPendingQuery(m.input.Value())
	}
	return m, cmd
}

// submit handles enter. Rejected submissions leave the input untouched.
func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return nil
	}
	if isCommand(value) {
		m.input.SetValue("")
		return m.executeCommand(value)
	}

	var op *session.Op
	var ok bool
	switch {
	case m.ctrl.Busy():
		m.hint = "Still working on the last request..."
		return nil
	case m.ctrl.CanSubmit():
		op, ok = m.ctrl.BeginQuery(value)
	default:
		op, ok = m.ctrl.BeginUpload(session.FileFromPath(value))
	}
	if !ok {
		return nil
	}

	m.input.SetValue("")
	m.hint = ""
	m.opKind = op.Kind()
	m.opStart = time.Now()
	m.refresh()
	return tea.Batch(runOp(m.ctx, op), spinnerTickCmd())
}

func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch strings.Fields(cmd)[0] {
	case "/new":
		m.startNewFile()
		return nil
	case "/help":
		m.showHelp = true
		return nil
	case "/quit", "/exit":
		return tea.Quit
	default:
		m.hint = "Unknown command: " + cmd
		return nil
	}
}

// isCommand tells slash commands apart from absolute file paths
func isCommand(value string) bool {
	if !strings.HasPrefix(value, "/") {
		return false
	}
	name := strings.Fields(value)[0]
	return !strings.ContainsAny(name[1:], "/.\\")
}

func (m *Model) startNewFile() {
	m.ctrl.StartNewFile()
	clear(m.chartPaths)
	clear(m.forwarded)
	m.hint = ""
	m.input.SetValue("")
	m.syncPlaceholder()
	m.refresh()
}

// forwardChart writes the plot page for a chart entry, once per entry
func (m *Model) forwardChart(entry model.Entry) tea.Cmd {
	if m.charts == nil || entry.Kind != model.ResultChart || m.forwarded[entry.ID] {
		return nil
	}
	view := render.Present(entry)
	if view.Chart == nil {
		return nil
	}
	m.forwarded[entry.ID] = true

	w, ctx := m.charts, m.ctx
	req := plot.Request{ID: entry.ID, Title: firstLine(entry.Text), Chart: *view.Chart}
	return func() tea.Msg {
		path, err := w.Write(ctx, req)
		return chartWrittenMsg{entryID: entry.ID, path: path, err: err}
	}
}

func (m *Model) syncPlaceholder() {
	if m.ctrl.Phase() == session.PhaseDatasetBound {
		m.input.Placeholder = questionPlaceholder
		return
	}
	m.input.Placeholder = filePlaceholder
}

// refresh repaints the scrollback from the controller and jumps to the latest entry
func (m *Model) refresh() {
	history := m.ctrl.History()
	if len(history) == 0 {
		m.viewport.SetContent(PlaceholderStyle.Render(
			"No data loaded yet.\n\nType or drop the path of an Excel file below and press enter."))
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.painter.PaintAll(render.PresentAll(history)))
	m.viewport.GotoBottom()
}

// View renders the screen
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.helpView()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	line := TitleStyle.Render("DATACHAT") + "  " + SubtitleStyle.Render("Chat with your spreadsheets")
	if ds, ok := m.ctrl.Dataset(); ok {
		line += DatasetStyle.Render(fmt.Sprintf(" · %s (%s)", ds.Filename, ds.TableID))
	}
	return lipgloss.NewStyle().PaddingLeft(1).Width(m.width).Render(line) + "\n"
}

func (m Model) renderInput() string {
	style := InputFocusedStyle
	if m.ctrl.Busy() {
		style = InputStyle
	}
	return style.Width(max(m.width-4, 10)).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var status string
	switch {
	case m.ctrl.Busy():
		status = StatusBusyStyle.Render(m.busyText())
	case m.ctrl.CanSubmit():
		status = StatusReadyStyle.Render("● Ready")
	default:
		status = StatusIdleStyle.Render("○ No data")
	}

	if m.hint != "" {
		status += "  " + HintStyle.Render(m.hint)
	}
	return StatusBarStyle.Render(status + "  " + m.help.View(m.keys))
}

func (m Model) busyText() string {
	phrase := "Analyzing"
	if m.opKind == session.OpUpload {
		phrase = "Uploading"
	}
	elapsed := int(time.Since(m.opStart).Seconds())
	return fmt.Sprintf("%s %s… (%ds)", spinnerFrames[m.spinnerIndex%len(spinnerFrames)], phrase, elapsed)
}

func (m Model) helpView() string {
	var b strings.Builder
	b.WriteString(HelpTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(HelpKeyStyle.Render(fmt.Sprintf("%-10s", h.Key)))
			b.WriteString(HelpDescStyle.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(HelpTitleStyle.Render("Commands"))
	b.WriteString("\n\n")
	for _, c := range availableCommands {
		b.WriteString(HelpKeyStyle.Render(fmt.Sprintf("%-10s", c.cmd)))
		b.WriteString(HelpDescStyle.Render(c.desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(HelpDescStyle.Render("Press ? or Esc to close"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, HelpStyle.Render(b.String()))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 80 {
		return string(r[:79]) + "…"
	}
	return line
}
