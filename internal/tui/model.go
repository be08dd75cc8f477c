// Package tui is the terminal feed reader. A Model renders the snapshots a
// messagelist.Controller publishes and turns key presses into controller
// calls.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/messagelist"
	"github.com/planetary-social/planetary-cli/internal/render"
	"github.com/planetary-social/planetary-cli/internal/ssb"
	tuistate "github.com/planetary-social/planetary-cli/internal/tui/state"
	tuitheme "github.com/planetary-social/planetary-cli/internal/tui/theme"
	tuiview "github.com/planetary-social/planetary-cli/internal/tui/view"
)

// StrategySaver persists the strategy picked in the UI.
type StrategySaver func(ctx context.Context, s feed.Strategy) error

type stateMsg struct {
	state messagelist.State
}

type listClosedMsg struct{}

type strategySavedMsg struct {
	strategy feed.Strategy
	err      error
}

type clearStatusMsg struct {
	id int
}

type Option func(*Model)

func WithStrategySaver(save StrategySaver) Option {
	return func(m *Model) { m.saveStrategy = save }
}

func WithRenderer(r *render.Renderer) Option {
	return func(m *Model) {
		if r != nil {
			m.renderer = r
		}
	}
}

func WithTheme(th tuitheme.Theme) Option {
	return func(m *Model) { m.theme = th }
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithTitle(title string) Option {
	return func(m *Model) {
		if title != "" {
			m.title = title
		}
	}
}

type Model struct {
	list         *messagelist.Controller
	updates      <-chan messagelist.State
	unsubscribe  func()
	saveStrategy StrategySaver
	renderer     *render.Renderer
	theme        tuitheme.Theme
	now          func() time.Time
	title        string
	spinner      spinner.Model

	state     messagelist.State
	cursor    int
	inDetail  bool
	detailTop int
	width     int
	height    int
	status    string
	statusID  int
	err       error
}

// NewModel subscribes to list. The caller owns list and closes it after the
// program exits.
func NewModel(list *messagelist.Controller, opts ...Option) Model {
	updates, unsubscribe := list.Subscribe()
	m := Model{
		list:        list,
		updates:     updates,
		unsubscribe: unsubscribe,
		renderer:    render.NewRenderer(render.Options{}),
		theme:       tuitheme.Default(),
		now:         time.Now,
		title:       "Planetary",
		state:       list.State(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(m.theme.StateLoad))
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.updates), loadFromScratchCmd(m.list), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stateMsg:
		selected := m.selectedKey()
		wasLoading := m.loading()
		prevLen := len(m.state.Messages)
		m.state = msg.state
		m.cursor = tuistate.RestoreCursor(m.state.Messages, selected, m.cursor)
		if len(m.state.Messages) == 0 {
			m.inDetail = false
		}
		cmds := []tea.Cmd{waitForState(m.updates)}
		// Prefetch only when rows were added. A failed page is retried once
		// the cursor moves.
		if len(m.state.Messages) > prevLen {
			cmds = append(cmds, m.prefetchCmd())
		}
		if m.loading() && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)
	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case listClosedMsg:
		return m, nil
	case strategySavedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Could not save feed strategy"
		} else {
			m.err = nil
			m.status = "Feed strategy: " + string(msg.strategy.Kind)
		}
		m.statusID++
		return m, clearStatusCmd(m.statusID, 3*time.Second)
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil
	case tea.KeyMsg:
		if m.inDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.unsubscribe()
		return m, tea.Quit
	case "j", "down":
		return m.moveCursor(1)
	case "k", "up":
		return m.moveCursor(-1)
	case "pgdown":
		return m.moveCursor(tuistate.PageStep(m.height, m.status != ""))
	case "pgup":
		return m.moveCursor(-tuistate.PageStep(m.height, m.status != ""))
	case "g", "home":
		m.cursor = 0
		return m, nil
	case "G", "end":
		return m.moveCursor(len(m.state.Messages))
	case "r":
		m.err = nil
		m.list.ClearError()
		return m, loadFromScratchCmd(m.list)
	case "s":
		next := m.state.Strategy.Next()
		m.cursor = 0
		m.status = "Switching to " + string(next.Kind)
		return m, tea.Batch(setStrategyCmd(m.list, next), saveStrategyCmd(m.saveStrategy, next))
	case "enter":
		if len(m.state.Messages) > 0 {
			m.inDetail = true
			m.detailTop = 0
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.unsubscribe()
		return m, tea.Quit
	case "esc", "backspace":
		m.inDetail = false
		return m, nil
	case "j", "down":
		m.detailTop++
		return m, nil
	case "k", "up":
		if m.detailTop > 0 {
			m.detailTop--
		}
		return m, nil
	case "]":
		m.detailTop = 0
		return m.moveCursor(1)
	case "[":
		m.detailTop = 0
		return m.moveCursor(-1)
	}
	return m, nil
}

func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	m.cursor = tuistate.ClampCursor(m.cursor+delta, len(m.state.Messages))
	return m, m.prefetchCmd()
}

// prefetchCmd reports the last visible row so the controller can load the
// next page before the user reaches the end.
func (m Model) prefetchCmd() tea.Cmd {
	n := len(m.state.Messages)
	if n == 0 || m.state.Exhausted {
		return nil
	}
	_, end := tuistate.CenteredWindow(n, m.cursor, m.listHeight())
	list := m.list
	index := end - 1
	return func() tea.Msg {
		list.ItemAppeared(index)
		return nil
	}
}

func (m Model) loading() bool {
	return m.state.IsLoading || m.state.IsLoadingMore
}

func (m Model) selectedKey() ssb.MessageKey {
	if m.cursor < 0 || m.cursor >= len(m.state.Messages) {
		return ""
	}
	return m.state.Messages[m.cursor].Key
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render(m.title))
	b.WriteString(" ")
	b.WriteString(m.theme.ModePill.Render(m.state.Strategy.String()))
	b.WriteString("\n")
	b.WriteString(tuiview.Toolbar(m.inDetail))
	b.WriteString("\n\n")

	if m.inDetail {
		b.WriteString(m.detailView())
	} else {
		b.WriteString(m.listView())
	}
	b.WriteString("\n")
	b.WriteString(m.messagePanel())
	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n")
	return b.String()
}

func (m Model) listView() string {
	st := m.state
	switch {
	case !st.Loaded() && st.ErrorMessage == "":
		return m.spinner.View() + " Loading feed...\n"
	case st.ErrorMessage != "":
		return "Could not load the feed: " + st.ErrorMessage + "\nPress r to retry.\n"
	case len(st.Messages) == 0 && st.IsLoading:
		return m.spinner.View() + " Loading feed...\n"
	case len(st.Messages) == 0:
		return "Nothing to show yet. Follow someone or import messages to fill this feed.\n"
	}

	var b strings.Builder
	now := m.now()
	start, end := tuistate.CenteredWindow(len(st.Messages), m.cursor, m.listHeight())
	for i := start; i < end; i++ {
		b.WriteString(tuiview.RenderMessageLine(tuiview.MessageLineParams{
			Message: st.Messages[i],
			Now:     now,
			Active:  i == m.cursor,
			Width:   m.contentWidth(),
		}, m.theme))
		b.WriteString("\n")
	}
	switch {
	case m.loading():
		b.WriteString(m.spinner.View() + " Loading more...\n")
	case st.Exhausted && end == len(st.Messages):
		b.WriteString(m.theme.MetaLabel.Render("· end of feed ·"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) detailView() string {
	if len(m.state.Messages) == 0 {
		return "No message selected.\n"
	}
	msg := m.state.Messages[tuistate.ClampCursor(m.cursor, len(m.state.Messages))]
	body := m.renderer.Post(msg, m.contentWidth())
	lines := tuiview.DetailLines(msg, body, m.now(), m.theme)
	top := min(m.detailTop, max(0, len(lines)-1))
	return tuiview.Window(lines, top, m.detailBodyHeight()) + "\n"
}

func (m Model) messagePanel() string {
	warning := m.state.ErrorMessage
	if m.err != nil {
		warning = m.err.Error()
	}
	return tuiview.Message(m.loading(), warning != "", m.status, warning, m.theme)
}

func (m Model) footer() string {
	mode := "list"
	if m.inDetail {
		mode = "detail"
	}
	return tuiview.Footer(mode, string(m.state.Strategy.Kind), len(m.state.Messages), m.state.Exhausted, m.theme)
}

func (m Model) contentWidth() int {
	if m.width > 0 {
		return m.width - 1
	}
	return 100
}

func (m Model) listHeight() int {
	if m.height > 0 {
		if h := m.height - 7; h > 3 {
			return h
		}
		return 3
	}
	return 20
}

func (m Model) detailBodyHeight() int {
	if m.height > 0 {
		usedByHeader := tuistate.ChromeRows
		if m.status != "" {
			usedByHeader += tuistate.StatusRows
		}
		if h := m.height - usedByHeader; h > 3 {
			return h
		}
	}
	return 16
}

func waitForState(updates <-chan messagelist.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return listClosedMsg{}
		}
		return stateMsg{state: st}
	}
}

func loadFromScratchCmd(list *messagelist.Controller) tea.Cmd {
	return func() tea.Msg {
		list.LoadFromScratch(context.Background())
		return nil
	}
}

func setStrategyCmd(list *messagelist.Controller, s feed.Strategy) tea.Cmd {
	return func() tea.Msg {
		list.SetStrategy(context.Background(), s)
		return nil
	}
}

func saveStrategyCmd(save StrategySaver, s feed.Strategy) tea.Cmd {
	if save == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := save(ctx, s); err != nil {
			return strategySavedMsg{strategy: s, err: fmt.Errorf("save strategy: %w", err)}
		}
		return strategySavedMsg{strategy: s}
	}
}

func clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}
