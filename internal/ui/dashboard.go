// Package ui renders the task dashboard: a Bubble Tea list bound to the
// synchronization core, with a metrics header, inline add/edit, search,
// filter/sort cycling, and a dismissible error notice with manual retry.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tasklabs/taskmate/internal/core"
	"github.com/tasklabs/taskmate/internal/task"
)

const opTimeout = 10 * time.Second

// taskItem adapts a task.Task to bubbles/list.Item.
type taskItem struct {
	t     task.Task
	today task.Date
}

func (i taskItem) line() string {
	glyph := glyphTodo
	switch i.t.Status {
	case task.StatusInProgress:
		glyph = glyphInProgress
	case task.StatusDone:
		glyph = glyphDone
	}
	s := fmt.Sprintf("%s %s", glyph, i.t.Title)
	if i.t.DueDate != nil {
		s += "  (" + i.t.DueDate.String() + ")"
	}
	return s
}

// Implement list.Item interface
func (i taskItem) Title() string       { return i.line() }
func (i taskItem) Description() string { return "" }
func (i taskItem) FilterValue() string { return i.t.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(taskItem)

	glyph := mutedStyle.Render(glyphTodo)
	text := it.t.Title
	switch it.t.Status {
	case task.StatusInProgress:
		glyph = progressStyle.Render(glyphInProgress)
	case task.StatusDone:
		glyph = successStyle.Render(glyphDone)
		text = doneStyle.Render(text)
	}

	due := ""
	if it.t.DueDate != nil {
		d := it.t.DueDate.String()
		switch {
		case it.t.Overdue(it.today):
			due = "  " + errorStyle.Render(d+" overdue")
		case it.t.DueToday(it.today):
			due = "  " + warnStyle.Render(d+" today")
		default:
			due = "  " + mutedStyle.Render(d)
		}
	}

	line := fmt.Sprintf("%s %s%s", glyph, text, due)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeEdit
	modeSearch
)

type Model struct {
	core *core.Core
	list list.Model
	ti   textinput.Model

	mode     mode
	editID   string
	inputErr string

	snap   core.Snapshot
	notice string // last operation error, dismissible

	width  int
	height int
}

func NewModel(c *core.Core) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = titleStyle.Render("Taskmate")
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false) // filtering is criteria-driven, not local
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("task", "tasks")

	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "cycle status")),
		key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "filter status")),
		key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort")),
		key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "direction")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return bindings[:4] }
	l.AdditionalFullHelpKeys = func() []key.Binding { return bindings }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	return Model{
		core: c,
		list: l,
		ti:   ti,
		snap: c.Snapshot(),
	}
}

// Run starts the dashboard and blocks until quit.
func Run(c *core.Core) error {
	p := tea.NewProgram(NewModel(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Messages

type coreUpdatedMsg struct{}

type opErrMsg struct{ err error }

func waitForUpdate(c *core.Core) tea.Cmd {
	return func() tea.Msg {
		<-c.Updates()
		return coreUpdatedMsg{}
	}
}

func (m Model) opCmd(op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.core)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case coreUpdatedMsg:
		m.snap = m.core.Snapshot()
		m.reloadItems()
		return m, waitForUpdate(m.core)

	case opErrMsg:
		m.notice = msg.err.Error()
		return m, nil
	}

	if m.mode != modeNormal {
		return m.updateInput(msg)
	}
	return m.updateNormal(msg)
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if x, ok := msg.(tea.KeyMsg); ok {
		switch x.String() {
		case "enter":
			value := strings.TrimSpace(m.ti.Value())
			switch m.mode {
			case modeAdd, modeEdit:
				if value == "" {
					m.inputErr = "Title cannot be empty"
					return m, nil
				}
			}
			cmd = m.submitInput(value)
			m.leaveInput()
			return m, cmd
		case "esc":
			m.leaveInput()
			return m, nil
		}
	}
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) submitInput(value string) tea.Cmd {
	switch m.mode {
	case modeAdd:
		return m.opCmd(func(ctx context.Context) error {
			_, err := m.core.Create(ctx, task.CreateInput{Title: value})
			return err
		})
	case modeEdit:
		id := m.editID
		return m.opCmd(func(ctx context.Context) error {
			_, err := m.core.Update(ctx, id, task.Patch{Title: task.StrPtr(value)})
			return err
		})
	case modeSearch:
		crit := m.snap.Criteria
		crit.Search = value
		return m.setCriteriaCmd(crit)
	}
	return nil
}

func (m *Model) leaveInput() {
	m.mode = modeNormal
	m.inputErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "esc":
			m.notice = ""
			return m, nil

		case "a":
			m.mode = modeAdd
			m.ti.Placeholder = "New task title..."
			m.ti.SetValue("")
			m.ti.Focus()
			return m, nil

		case "e":
			if t, ok := m.selected(); ok {
				m.mode = modeEdit
				m.editID = t.ID
				m.ti.Placeholder = "Edit task title..."
				m.ti.SetValue(t.Title)
				m.ti.CursorEnd()
				m.ti.Focus()
			}
			return m, nil

		case "/":
			m.mode = modeSearch
			m.ti.Placeholder = "Search titles..."
			m.ti.SetValue(m.snap.Criteria.Search)
			m.ti.CursorEnd()
			m.ti.Focus()
			return m, nil

		case "d":
			if t, ok := m.selected(); ok {
				id := t.ID
				return m, m.opCmd(func(ctx context.Context) error {
					return m.core.Delete(ctx, id)
				})
			}
			return m, nil

		case " ":
			if t, ok := m.selected(); ok {
				next := nextStatus(t.Status)
				sel := t
				return m, m.opCmd(func(ctx context.Context) error {
					_, err := m.core.ChangeStatus(ctx, &sel, next)
					return err
				})
			}
			return m, nil

		case "s":
			crit := m.snap.Criteria
			crit.Status = nextStatusFilter(crit.Status)
			return m, m.setCriteriaCmd(crit)

		case "o":
			crit := m.snap.Criteria
			crit.Order.Column = nextColumn(crit.Order.Column)
			return m, m.setCriteriaCmd(crit)

		case "O":
			crit := m.snap.Criteria
			crit.Order.Ascending = !crit.Order.Ascending
			return m, m.setCriteriaCmd(crit)

		case "r":
			m.notice = ""
			return m, m.opCmd(m.core.Refresh)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setCriteriaCmd(crit task.Criteria) tea.Cmd {
	return m.opCmd(func(ctx context.Context) error {
		return m.core.SetCriteria(ctx, crit)
	})
}

func (m *Model) selected() (task.Task, bool) {
	i := m.list.Index()
	items := m.list.Items()
	if i < 0 || i >= len(items) {
		return task.Task{}, false
	}
	it, ok := items[i].(taskItem)
	return it.t, ok
}

func (m *Model) reloadItems() {
	today := task.Today()
	items := make([]list.Item, 0, len(m.snap.Tasks))
	for _, t := range m.snap.Tasks {
		items = append(items, taskItem{t: t, today: today})
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
}

func (m Model) View() string {
	w, h := m.width, m.height
	if w == 0 {
		w, h = 80, 24
	}

	header := m.headerView()
	headerLines := strings.Count(header, "\n") + 1

	listHeight := h - headerLines - 1
	if m.mode != modeNormal {
		listHeight -= 3
	}
	if m.notice != "" {
		listHeight -= 1
	}
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(w-2, listHeight)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.list.View())

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("✖ " + m.notice))
		b.WriteString(mutedStyle.Render("  (esc to dismiss, r to retry)"))
	}

	if m.mode != modeNormal {
		title := "Add task"
		switch m.mode {
		case modeEdit:
			title = "Edit task"
		case modeSearch:
			title = "Search"
		}
		if m.inputErr != "" {
			title += "  " + errorStyle.Render(m.inputErr)
		}
		b.WriteString("\n")
		b.WriteString(inputBarStyle.Render(title + "\n" + m.ti.View()))
	}

	return b.String()
}

func (m Model) headerView() string {
	sn := m.snap
	counts := sn.Metrics.StatusCounts

	liveDot := mutedStyle.Render("○ manual")
	if sn.Live {
		liveDot = successStyle.Render("● live")
	}
	loading := ""
	if sn.Loading {
		loading = "  " + mutedStyle.Render("loading...")
	}

	line1 := fmt.Sprintf("%s   %s %d  %s %d  %s %d   %s %d  %s %d   %s%s",
		titleStyle.Render("Tasks"),
		mutedStyle.Render(glyphTodo), counts[task.StatusTodo],
		progressStyle.Render(glyphInProgress), counts[task.StatusInProgress],
		successStyle.Render(glyphDone), counts[task.StatusDone],
		warnStyle.Render("due today"), sn.Metrics.DueToday,
		errorStyle.Render("overdue"), sn.Metrics.Overdue,
		liveDot, loading,
	)

	filter := "all"
	if sn.Criteria.Status != "" {
		filter = string(sn.Criteria.Status)
	}
	dir := "desc"
	if sn.Criteria.Order.Ascending {
		dir = "asc"
	}
	search := sn.Criteria.Search
	if search == "" {
		search = "-"
	}
	line2 := mutedStyle.Render(fmt.Sprintf("filter: %s   sort: %s %s   search: %s",
		filter, sn.Criteria.Order.Column, dir, search))

	out := line1 + "\n" + line2
	if sn.LastErr != nil {
		out += "\n" + errorStyle.Render("fetch failed: "+sn.LastErr.Error()) +
			mutedStyle.Render("  (showing last loaded data, r to retry)")
	}
	return out
}

func nextStatus(s task.Status) task.Status {
	switch s {
	case task.StatusTodo:
		return task.StatusInProgress
	case task.StatusInProgress:
		return task.StatusDone
	default:
		return task.StatusTodo
	}
}

func nextStatusFilter(s task.Status) task.Status {
	switch s {
	case "":
		return task.StatusTodo
	case task.StatusTodo:
		return task.StatusInProgress
	case task.StatusInProgress:
		return task.StatusDone
	default:
		return ""
	}
}

var columnCycle = []task.Column{
	task.ColCreatedAt, task.ColUpdatedAt, task.ColDueDate, task.ColTitle, task.ColStatus,
}

func nextColumn(c task.Column) task.Column {
	for i, col := range columnCycle {
		if col == c {
			return columnCycle[(i+1)%len(columnCycle)]
		}
	}
	return task.ColCreatedAt
}
