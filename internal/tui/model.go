// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/client"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/quiz"
	statsPkg "github.com/verte-zerg/lajit/internal/stats"
)

type screen int

const (
	screenMenu screen = iota
	screenQuestion
	screenFeedback
)

// Config holds the quiz settings.
type Config struct {
	Category string
	Choices  int
	Logger   *slog.Logger
	Now      func() time.Time
}

// Model implements the Bubble Tea quiz UI. It acts as one tab.
type Model struct {
	catalog *catalog.Catalog
	tab     *client.Tab
	gen     *quiz.Generator
	logger  *slog.Logger
	choices int
	now     func() time.Time

	width  int
	height int

	screen     screen
	menuCursor int
	current    catalog.Category
	question   quiz.Question
	hint       string
	cursor     int
	picked     string
	tally      quiz.Tally
	last       *quiz.Tally
	status     string

	scores model.ScoreMap
	items  model.ItemStatsMap
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

type updateMsg struct {
	msg model.Message
	ok  bool
}

type savedMsg struct {
	what string
	ok   bool
}

// NewModel constructs a quiz TUI model bound to tab.
func NewModel(cat *catalog.Catalog, tab *client.Tab, gen *quiz.Generator, cfg Config) *Model {
	m := &Model{
		catalog: cat,
		tab:     tab,
		gen:     gen,
		logger:  cfg.Logger,
		choices: cfg.Choices,
		now:     cfg.Now,
		scores:  tab.Scores(),
		items:   tab.ItemStats(),
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.choices < 2 {
		m.choices = quiz.DefaultChoices
	}
	if cfg.Category != "" {
		if c, ok := cat.Category(cfg.Category); ok {
			for i, key := range cat.Keys() {
				if key == c.Key {
					m.menuCursor = i
				}
			}
			m.enterCategory(c)
		}
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForUpdate(m.tab)
}

func waitForUpdate(tab *client.Tab) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-tab.Updates()
		return updateMsg{msg: msg, ok: ok}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case updateMsg:
		if !msg.ok {
			return m, nil
		}
		m.scores = m.tab.Scores()
		m.items = m.tab.ItemStats()
		return m, waitForUpdate(m.tab)
	case savedMsg:
		if !msg.ok {
			m.status = fmt.Sprintf("%s not saved", msg.what)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Sequence(m.leaveCategory(), tea.Quit)
		}
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenQuestion:
			return m.updateQuestion(msg)
		default:
			return m.updateFeedback(msg)
		}
	default:
		return m, nil
	}
}

func (m *Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cats := m.catalog.Categories()
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(cats)-1 {
			m.menuCursor++
		}
	case "enter", " ":
		m.enterCategory(cats[m.menuCursor])
	}
	return m, nil
}

func (m *Model) updateQuestion(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "esc", "q":
		return m, m.leaveCategory()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.question.Choices)-1 {
			m.cursor++
		}
	case "enter", " ":
		return m, m.answer(m.question.Choices[m.cursor])
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(m.question.Choices) {
				m.cursor = idx
				return m, m.answer(m.question.Choices[idx])
			}
		}
	}
	return m, nil
}

func (m *Model) updateFeedback(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return m, m.leaveCategory()
	case "enter", " ", "n":
		m.nextQuestion()
	}
	return m, nil
}

func (m *Model) enterCategory(c catalog.Category) {
	m.current = c
	m.tally.Reset(c.Key)
	m.gen.Reset(c.Key)
	m.status = ""
	m.nextQuestion()
}

func (m *Model) nextQuestion() {
	q, err := m.gen.Next(m.current, m.choices)
	if err != nil {
		m.logger.Error("failed to build question", "category", m.current.Key, "error", err)
		m.screen = screenMenu
		return
	}
	m.question = q
	m.hint = m.gen.Hint(q)
	m.cursor = 0
	m.picked = ""
	m.screen = screenQuestion
}

func (m *Model) answer(choice string) tea.Cmd {
	correct := m.question.Correct(choice)
	m.picked = choice
	m.tally.Add(correct)
	m.screen = screenFeedback

	key := m.question.ItemKey()
	rec := quiz.NextRecord(m.items[key], correct, m.now())
	if raw, err := json.Marshal(rec); err == nil {
		m.items[key] = raw
	}
	tab := m.tab
	return func() tea.Msg {
		return savedMsg{what: "item stats", ok: tab.SaveItemStats(context.Background(), key, rec)}
	}
}

// leaveCategory returns to the menu and saves the session, if any answers were given.
func (m *Model) leaveCategory() tea.Cmd {
	if m.screen == screenMenu {
		return nil
	}
	m.screen = screenMenu
	tally := m.tally
	m.tally.Reset("")
	if tally.Total <= 0 {
		return nil
	}
	m.last = &tally
	prev := m.scores[tally.Category]
	m.scores[tally.Category] = model.CategoryStats{
		Sessions:  prev.Sessions + 1,
		LastScore: &model.LastScore{Correct: tally.Correct, Total: tally.Total, Timestamp: m.now().UnixMilli()},
	}
	tab := m.tab
	return func() tea.Msg {
		return savedMsg{what: "score", ok: tab.SaveScore(context.Background(), tally.Category, tally.Correct, tally.Total)}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.screen {
	case screenMenu:
		body = m.viewMenu()
	case screenQuestion:
		body = m.viewQuestion()
	default:
		body = m.viewFeedback()
	}
	if m.width == 0 || m.height == 0 {
		return body + "\n" + m.renderFooter()
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	content := lipgloss.NewStyle().Width(contentWidth).Render(body)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	main := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return main + "\n" + footerLine
}

func (m *Model) viewMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Valitse kategoria"))
	b.WriteString("\n\n")
	for i, c := range m.catalog.Categories() {
		line := c.Title()
		if s, ok := m.scores[c.Key]; ok && s.LastScore != nil {
			line += fmt.Sprintf("  %d/%d", s.LastScore.Correct, s.LastScore.Total)
		}
		if i == m.menuCursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(normalStyle.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	cats := m.catalog.Categories()
	if m.menuCursor < len(cats) {
		if weak := statsPkg.Weakest(m.items, cats[m.menuCursor].Key, 3); len(weak) > 0 {
			names := make([]string, len(weak))
			for i, key := range weak {
				_, names[i], _ = catalog.SplitItemKey(key)
			}
			b.WriteByte('\n')
			b.WriteString(hintStyle.Render("Harjoittele: " + strings.Join(names, ", ")))
		}
	}
	return b.String()
}

func (m *Model) viewQuestion() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.current.Title()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Mikä laji on %s?", m.question.Answer.WikiTitle))
	b.WriteString("\n")
	if m.hint != "" {
		b.WriteString(hintStyle.Render(wrapText(m.hint, m.textWidth())))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, choice := range m.question.Choices {
		line := fmt.Sprintf("%d. %s", i+1, choice)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(normalStyle.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Model) viewFeedback() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.current.Title()))
	b.WriteString("\n\n")
	if m.question.Correct(m.picked) {
		b.WriteString(correctStyle.Render("Oikein! " + m.question.Answer.Name))
	} else {
		b.WriteString(incorrectStyle.Render(fmt.Sprintf("Väärin: %s. Oikea vastaus: %s", m.picked, m.question.Answer.Name)))
	}
	b.WriteString("\n")
	if rec := quiz.DecodeRecord(m.items[m.question.ItemKey()]); rec.Seen > 0 {
		b.WriteString(normalStyle.Render(fmt.Sprintf("Nähty %d kertaa · %.0f%%", rec.Seen, rec.Accuracy()*100)))
		b.WriteString("\n")
	}
	if fact := m.question.Answer.FunFact; fact != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(wrapText(fact, m.textWidth())))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(normalStyle.Render("enter: seuraava · esc: valikkoon"))
	return b.String()
}

func (m *Model) textWidth() int {
	if m.width == 0 {
		return 0
	}
	return int(float64(m.width) * 0.70)
}

func (m *Model) renderFooter() string {
	var segments []string
	if m.screen != screenMenu && m.tally.Total > 0 {
		segments = append(segments, fmt.Sprintf("Session %d/%d · %.1f%%",
			m.tally.Correct, m.tally.Total, statsPkg.Accuracy(m.tally.Correct, m.tally.Total)*100))
	} else if m.last != nil {
		segments = append(segments, fmt.Sprintf("Last %d/%d · %.1f%%",
			m.last.Correct, m.last.Total, statsPkg.Accuracy(m.last.Correct, m.last.Total)*100))
	}
	key := m.current.Key
	if m.screen == screenMenu {
		if cats := m.catalog.Categories(); m.menuCursor < len(cats) {
			key = cats[m.menuCursor].Key
		}
	}
	if s, ok := m.scores[key]; ok {
		segments = append(segments, fmt.Sprintf("Sessions %d", s.Sessions))
	}
	if m.status != "" {
		segments = append(segments, m.status)
	}
	if len(segments) == 0 {
		return ""
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
