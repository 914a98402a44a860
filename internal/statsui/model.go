// Package statsui provides the Bubble Tea live scoreboard.
package statsui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/client"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/stats"
)

const (
	tabOverview = iota
	tabCategories
	tabSpecies
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea scoreboard. It acts as one tab and redraws
// on every broadcast.
type Model struct {
	catalog *catalog.Catalog
	tab     *client.Tab
	loc     *time.Location

	scores model.ScoreMap
	items  model.ItemStatsMap
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	category    string

	confirmClear bool
}

type updateMsg struct {
	ok bool
}

type clearedMsg struct {
	ok bool
}

// NewModel constructs a scoreboard bound to tab.
func NewModel(cat *catalog.Catalog, tab *client.Tab) *Model {
	m := &Model{
		catalog: cat,
		tab:     tab,
		loc:     time.Local,
		tabs:    []string{"Overview", "Categories", "Species"},
		scores:  tab.Scores(),
		items:   tab.ItemStats(),
	}
	m.overview = viewport.New(0, 0)
	categories := newTable(stats.ScoreHeaders)
	species := newTable(stats.ItemHeaders)
	m.tables = map[int]*table.Model{tabCategories: &categories, tabSpecies: &species}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Category: "
	m.filterInput.Placeholder = strings.Join(cat.Keys(), ", ")
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForUpdate(m.tab)
}

func waitForUpdate(tab *client.Tab) tea.Cmd {
	return func() tea.Msg {
		_, ok := <-tab.Updates()
		return updateMsg{ok: ok}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.refresh()
		return m, nil
	case updateMsg:
		if !msg.ok {
			return m, nil
		}
		m.scores = m.tab.Scores()
		m.items = m.tab.ItemStats()
		m.refresh()
		return m, waitForUpdate(m.tab)
	case clearedMsg:
		if !msg.ok {
			m.errMsg = "Clear failed: coordinator unavailable."
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.confirmClear {
			m.confirmClear = false
			if msg.String() == "y" {
				tab := m.tab
				return m, func() tea.Msg {
					return clearedMsg{ok: tab.ClearScores(context.Background())}
				}
			}
			return m, nil
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			m.filterMode = true
			m.filterInput.SetValue(m.category)
			return m, m.filterInput.Focus()
		case "c":
			m.confirmClear = true
			return m, nil
		default:
			if t, ok := m.tables[m.activeTab]; ok {
				var cmd tea.Cmd
				*t, cmd = t.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.overview, cmd = m.overview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.filterInput.Value())
		if value != "" {
			if _, ok := m.catalog.Category(value); !ok {
				m.errMsg = fmt.Sprintf("Unknown category %q.", value)
				return m, nil
			}
		}
		m.errMsg = ""
		m.category = value
		m.filterMode = false
		m.filterInput.Blur()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range m.tables {
		t.SetWidth(m.width)
		t.SetHeight(maxInt(1, bodyHeight-1))
	}
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	if t, ok := m.tables[m.activeTab]; ok {
		t.Blur()
	}
	m.activeTab = next
	if t, ok := m.tables[m.activeTab]; ok {
		t.Focus()
	}
}

// refresh rebuilds every tab from the current maps.
func (m *Model) refresh() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.catalog, m.scores, m.items, width))

	scoreRows := stats.ScoreRows(m.catalog.Categories(), m.scores, m.loc)
	m.tables[tabCategories].SetColumns(fitColumns(stats.ScoreHeaders, scoreRows))
	m.tables[tabCategories].SetRows(toRows(scoreRows))

	itemRows := stats.ItemRows(stats.ItemStats(m.items, m.category), m.loc)
	m.tables[tabSpecies].SetColumns(fitColumns(stats.ItemHeaders, itemRows))
	m.tables[tabSpecies].SetRows(toRows(itemRows))
}

func renderOverview(cat *catalog.Catalog, scores model.ScoreMap, items model.ItemStatsMap, width int) string {
	if len(scores) == 0 && len(items) == 0 {
		return "No scores yet. Play a category to get started."
	}
	sessions, correct, total := 0, 0, 0
	for _, s := range scores {
		sessions += s.Sessions
		if s.LastScore != nil {
			correct += s.LastScore.Correct
			total += s.LastScore.Total
		}
	}
	seen := 0
	for _, it := range stats.ItemStats(items, "") {
		if it.Record.Seen > 0 {
			seen++
		}
	}
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d", sessions)),
		metricCard("Last rounds", fmt.Sprintf("%.1f%%", stats.Accuracy(correct, total)*100)),
		metricCard("Species seen", fmt.Sprintf("%d", seen)),
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if lipgloss.Width(row) > width {
		row = lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	lines := []string{row}
	if weak := stats.Weakest(items, "", 5); len(weak) > 0 {
		names := make([]string, 0, len(weak))
		for _, key := range weak {
			catKey, name, _ := catalog.SplitItemKey(key)
			label := name
			if c, ok := cat.Category(catKey); ok && c.Emoji != "" {
				label = c.Emoji + " " + name
			}
			names = append(names, label)
		}
		lines = append(lines, "", "Practice next: "+strings.Join(names, ", "))
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value)
	return cardStyle.Render(content)
}

func newTable(headers []string) table.Model {
	t := table.New(
		table.WithColumns(fitColumns(headers, nil)),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func fitColumns(headers []string, rows [][]string) []table.Column {
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		w := runewidth.StringWidth(h)
		for _, row := range rows {
			if i < len(row) {
				w = maxInt(w, runewidth.StringWidth(row[i]))
			}
		}
		cols[i] = table.Column{Title: h, Width: w}
	}
	return cols
}

func toRows(rows [][]string) []table.Row {
	out := make([]table.Row, len(rows))
	for i, row := range rows {
		out[i] = table.Row(row)
	}
	return out
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	category := m.category
	if category == "" {
		category = "all"
	}
	summary := truncateLine(fmt.Sprintf("Species filter: %s", category), m.width)
	return padLines(m.renderTabs(), m.width) + "\n" + headerStyle.Render(summary)
}

func (m *Model) renderBody() string {
	switch {
	case m.filterMode:
		return m.filterInput.View()
	case m.confirmClear:
		return "Clear all scores? This cannot be undone. (y/N)"
	}
	if t, ok := m.tables[m.activeTab]; ok {
		if len(t.Rows()) == 0 {
			return "No stats yet."
		}
		return tableMutedStyle.Render(t.View())
	}
	return m.overview.View()
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  Filter: /  Clear scores: c  Quit: q"
	if m.filterMode {
		help = "enter: apply  esc: cancel"
	}
	out := headerStyle.Render(help)
	if m.errMsg != "" {
		out += "\n" + errorStyle.Render(m.errMsg)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
