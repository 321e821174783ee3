package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/redmiedge/sensordash/internal/dashboard"
	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
)

const (
	CtrlC   = "ctrl+c"
	KeyUp   = "up"
	KeyDown = "down"

	chartHeight      = 12
	fullscreenMargin = 4
	sparkWidth       = 24
)

// Model is the bubbletea model of the dashboard. All application state lives in the
// dashboard.App it owns and is only mutated from Update.
type Model struct {
	app       *dashboard.App
	title     string
	exportDir string
	now       func() time.Time

	viewport viewport.Model
	search   textinput.Model
	spinner  spinner.Model
	ready    bool
	width    int
	height   int

	// Search state
	searching bool
	query     string
	searchSeq int

	focus      int
	fullscreen bool

	toast    string
	toastSeq int
}

// Options configures a Model.
type Options struct {
	Title     string
	ExportDir string
}

// New creates the dashboard model around app.
func New(app *dashboard.App, opts Options) Model {
	search := textinput.New()
	search.Placeholder = "filter sensors"
	search.Prompt = "🔍 "
	search.CharLimit = 64

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(CursorStyle))

	vp := viewport.New(80, 20)
	vp.KeyMap = scrollKeys()

	title := opts.Title
	if title == "" {
		title = "Sensor Dashboard"
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	return Model{
		app:       app,
		title:     title,
		exportDir: exportDir,
		now:       time.Now,
		viewport:  vp,
		search:    search,
		spinner:   sp,
	}
}

// scrollKeys leaves letter keys to the dashboard bindings.
func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		Up:           key.NewBinding(key.WithKeys(KeyUp)),
		Down:         key.NewBinding(key.WithKeys(KeyDown)),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown", " ")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
	}
}

// App returns the application state.
func (m Model) App() *dashboard.App { return m.app }

// Init starts the loader spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.app.SetConn(msg.State)
		m.refresh()
		return m, nil

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case NoticeMsg:
		return m.showToast(msg.Text)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case searchDebounceMsg:
		if msg.seq == m.searchSeq {
			m.query = msg.query
			m.refresh()
		}
		return m, nil

	case scrollRestoreMsg:
		m.viewport.SetYOffset(m.app.Scroll.Finish())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.ready = true
		m.search.Width = msg.Width / 3
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearchInput(msg)
		}
		if handled, next, cmd := m.updateKeys(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.app.Scroll.Observe(m.viewport.YOffset)
	return m, cmd
}

// handleSnapshot renders a snapshot keeping the chart region's scroll offset. The
// offset is restored right away and once more after the follow-up delay.
func (m Model) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	m.app.Scroll.Begin(m.viewport.YOffset)
	m.app.HandleSnapshot(msg.Snapshot, msg.First)
	m.clampFocus()
	m.refresh()
	m.viewport.SetYOffset(m.app.Scroll.End())

	return m, tea.Tick(dashboard.ScrollFollowUp, func(time.Time) tea.Msg {
		return scrollRestoreMsg{}
	})
}

func (m Model) showToast(text string) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toast = text
	seq := m.toastSeq
	return m, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m Model) updateKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", CtrlC:
		return true, m, tea.Quit

	case "esc":
		if m.fullscreen {
			m.fullscreen = false
			m.refresh()
			return true, m, nil
		}
		if m.query != "" {
			m.query = ""
			m.search.SetValue("")
			m.refresh()
		}
		return true, m, nil

	case "j":
		m.moveFocus(1)
		return true, m, nil

	case "k":
		m.moveFocus(-1)
		return true, m, nil

	case "tab", "shift+tab":
		delta := 1
		if msg.String() == "shift+tab" {
			delta = -1
		}
		m.focus = 0
		cmd := m.afterAction(m.app.CycleSensor(delta), "")
		return true, m, cmd

	case "/":
		m.searching = true
		m.search.Focus()
		m.refresh()
		return true, m, textinput.Blink

	case "d":
		dark := m.app.ToggleDark()
		m.refresh()
		label := "Dark mode off"
		if dark {
			label = "Dark mode on"
		}
		next, cmd := m.showToast(label)
		return true, next, cmd

	case "E":
		path, err := m.app.ExportCSV(m.exportDir, m.now())
		if errors.Is(err, sensor.ErrNoData) {
			next, cmd := m.showToast("No data available for export.")
			return true, next, cmd
		}
		cmd := m.afterAction(err, "Saved "+path)
		return true, m, cmd
	}

	name := m.focusedSensor()
	if name == "" {
		return false, m, nil
	}

	switch msg.String() {
	case "p":
		cmd := m.afterAction(m.app.TogglePin(name), "")
		return true, m, cmd

	case "c":
		cmd := m.afterAction(m.app.SetView(name, prefs.ViewCombined), "")
		return true, m, cmd

	case "x":
		cmd := m.afterAction(m.app.SetView(name, prefs.ViewSeparate), "")
		return true, m, cmd

	case "a":
		axis, err := m.app.CycleAxisFilter(name)
		cmd := m.afterAction(err, fmt.Sprintf("%s axis: %s", name, axis))
		return true, m, cmd

	case "f":
		if m.app.VisibleChart(name) != nil {
			m.fullscreen = !m.fullscreen
			m.refresh()
		}
		return true, m, nil

	case "e":
		path, err := m.app.ExportPNG(m.exportDir, name)
		cmd := m.afterAction(err, "Saved "+path)
		return true, m, cmd
	}
	return false, m, nil
}

// afterAction refreshes the view and turns the outcome into a toast.
func (m *Model) afterAction(err error, success string) tea.Cmd {
	m.clampFocus()
	m.refresh()
	text := success
	if err != nil {
		text = "Error: " + err.Error()
	}
	if text == "" {
		return nil
	}
	return func() tea.Msg { return NoticeMsg{Text: text} }
}

// updateSearchInput handles keyboard input in search mode
func (m Model) updateSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.query = ""
		m.searchSeq++
		m.refresh()
		return m, nil

	case "enter":
		m.searching = false
		m.search.Blur()
		m.query = m.search.Value()
		m.searchSeq++
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.searchSeq++
	seq, query := m.searchSeq, m.search.Value()
	debounce := tea.Tick(SearchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, query: query}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m *Model) moveFocus(delta int) {
	n := m.app.Scene().Len()
	if n == 0 {
		return
	}
	m.focus = (m.focus + delta + n) % n
	m.refresh()
}

func (m *Model) clampFocus() {
	if n := m.app.Scene().Len(); m.focus >= n {
		m.focus = max(n-1, 0)
	}
}

func (m Model) focusedSensor() string {
	order := m.app.Scene().Order()
	if m.focus < 0 || m.focus >= len(order) {
		return ""
	}
	return order[m.focus]
}

// refresh lays out the chart region for the current state.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	top := m.renderTop()
	height := m.height - lipgloss.Height(top) - lipgloss.Height(m.renderStatusBar())
	m.viewport.Height = max(height, 3)
	m.viewport.SetContent(m.renderCharts())
}

// View renders the model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.fullscreen {
		return m.renderFullscreen()
	}
	return strings.Join([]string{m.renderTop(), m.viewport.View(), m.renderStatusBar()}, "\n")
}

func (m Model) renderTop() string {
	sections := []string{m.renderHeader()}
	if pinned := m.renderPinned(); pinned != "" {
		sections = append(sections, pinned)
	}
	sections = append(sections, m.renderLiveTable())
	if m.searching || m.query != "" {
		sections = append(sections, m.search.View())
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("📡 " + m.title))
	b.WriteString(" ")
	if updated := m.app.Updated(); !updated.IsZero() {
		b.WriteString(MutedStyle.Render("🕒 " + updated.Format("2006-01-02 15:04:05")))
		b.WriteString(" ")
	}
	state := m.app.Conn().String()
	b.WriteString(StateStyle(state).Render("● " + state))
	if m.app.Loading() {
		b.WriteString(" " + m.spinner.View() + MutedStyle.Render(" waiting for data"))
	}
	b.WriteString("  ")
	b.WriteString(SelectedStyle.Render(" " + m.app.Prefs().SelectedSensor() + " "))
	if m.toast != "" {
		b.WriteString("  " + ToastStyle.Render(m.toast))
	}
	return b.String()
}

func (m Model) renderPinned() string {
	pinned := m.app.Prefs().Pinned()
	if len(pinned) == 0 {
		return ""
	}
	snap := m.app.Snapshot()
	parts := make([]string, 0, len(pinned))
	for _, name := range pinned {
		item := PinnedStyle.Render(sensor.IconFor(name) + " " + name)
		if snap != nil {
			if series, ok := snap.Sensor(name); ok && len(series.Axes) > 0 {
				item += " " + Sparkline(series.Axes[0].Values, sparkWidth)
			}
		}
		parts = append(parts, item)
	}
	return SectionHeaderStyle.Render("⭐ Pinned Sensors") + " " + strings.Join(parts, "  ")
}

func (m Model) renderLiveTable() string {
	rows := m.app.LiveRows()
	if len(rows) == 0 {
		return MutedStyle.Render("No live readings yet.")
	}

	cells := make([]string, 0, len(rows))
	for _, row := range rows {
		if !row.Matches(m.query) {
			continue
		}
		trend := TrendStyle(row.Trend).Render(fmt.Sprintf("%s %.2f", row.Trend, row.Value))
		cells = append(cells, fmt.Sprintf("%s %s %s", row.Icon, MutedStyle.Render(row.Key), trend))
	}
	if len(cells) == 0 {
		return MutedStyle.Render("No readings match " + fmt.Sprintf("%q", m.query))
	}

	// Lay cells out in as many columns as fit.
	colWidth := 0
	for _, c := range cells {
		colWidth = max(colWidth, lipgloss.Width(c))
	}
	cols := max(1, m.width/(colWidth+3))
	var lines []string
	for i := 0; i < len(cells); i += cols {
		end := min(i+cols, len(cells))
		line := make([]string, 0, cols)
		for _, c := range cells[i:end] {
			line = append(line, lipgloss.NewStyle().Width(colWidth+2).Render(c))
		}
		lines = append(lines, strings.Join(line, " "))
	}
	return BoxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderCharts() string {
	widgets := m.app.Scene().Widgets()
	if len(widgets) == 0 {
		if m.app.Loading() {
			return MutedStyle.Render("Waiting for sensor stream...")
		}
		return MutedStyle.Render("No sensors to chart.")
	}

	width := max(m.width-4, 20)
	blocks := make([]string, 0, len(widgets))
	for i, w := range widgets {
		var b strings.Builder
		b.WriteString(m.widgetHeader(w, i == m.focus))
		for _, c := range w.VisibleCharts() {
			b.WriteString("\n")
			b.WriteString(RenderChart(c, width-4, chartHeight))
		}
		style := BoxStyle
		if i == m.focus {
			style = FocusedBoxStyle
		}
		blocks = append(blocks, style.Width(width).Render(b.String()))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) widgetHeader(w *dashboard.Widget, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(CursorStyle.Render("▶ "))
	}
	b.WriteString(HeaderStyle.Render(sensor.IconFor(w.Sensor) + " " + w.Sensor))
	if m.app.Prefs().IsPinned(w.Sensor) {
		b.WriteString(PinnedStyle.Render(" ⭐"))
	}
	if w.Controls != nil {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  view: %s  axis: %s", w.Controls.View, w.Controls.AxisFilter)))
	}
	return b.String()
}

func (m Model) renderFullscreen() string {
	c := m.app.VisibleChart(m.focusedSensor())
	if c == nil {
		return MutedStyle.Render("Nothing to show. Press esc to go back.")
	}
	chart := RenderChart(c, m.width-fullscreenMargin, m.height-2)
	return chart + "\n" + HelpStyle.Render(HelpKeyStyle.Render("[f/esc]")+" Exit fullscreen")
}

func (m Model) renderStatusBar() string {
	var keys []string
	if m.searching {
		keys = []string{
			HelpKeyStyle.Render("[Type]") + " Filter",
			HelpKeyStyle.Render("[Enter]") + " Keep",
			HelpKeyStyle.Render("[Esc]") + " Clear",
		}
	} else {
		keys = []string{
			HelpKeyStyle.Render("[j/k]") + " Focus",
			HelpKeyStyle.Render("[Tab]") + " Sensor",
			HelpKeyStyle.Render("[p]") + " Pin",
			HelpKeyStyle.Render("[c/x]") + " View",
			HelpKeyStyle.Render("[a]") + " Axis",
			HelpKeyStyle.Render("[f]") + " Full",
			HelpKeyStyle.Render("[e/E]") + " PNG/CSV",
			HelpKeyStyle.Render("[d]") + " Dark",
			HelpKeyStyle.Render("[/]") + " Search",
			HelpKeyStyle.Render("[q]") + " Quit",
		}
	}
	return HelpStyle.Render(strings.Join(keys, " "))
}
