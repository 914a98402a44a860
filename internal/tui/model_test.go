package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/client"
	"github.com/verte-zerg/lajit/internal/coordinator"
	"github.com/verte-zerg/lajit/internal/quiz"
)

func newTestModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	tab := client.New(coordinator.NewRegistry(nil))
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.UnixMilli(1000) }
	}
	return NewModel(cat, tab, quiz.NewWithSeed(1), cfg)
}

func press(m *Model, key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestStartsInConfiguredCategory(t *testing.T) {
	m := newTestModel(t, Config{Category: "kalat"})
	if m.screen != screenQuestion || m.current.Key != "kalat" {
		t.Fatalf("expected kalat question, got screen %d category %q", m.screen, m.current.Key)
	}
	if len(m.question.Choices) != quiz.DefaultChoices {
		t.Fatalf("unexpected choices %v", m.question.Choices)
	}
}

func TestMenuNavigation(t *testing.T) {
	m := newTestModel(t, Config{})
	press(m, "down")
	press(m, "enter")
	if m.screen != screenQuestion || m.current.Key != "sienet" {
		t.Fatalf("expected sienet question, got %d %q", m.screen, m.current.Key)
	}
	if !strings.Contains(m.View(), m.current.Name) {
		t.Fatalf("question view missing category name")
	}
}

func TestAnswerRecordsItemAndTally(t *testing.T) {
	m := newTestModel(t, Config{Category: "marjat"})
	answer := m.question.Answer.Name
	key := m.question.ItemKey()
	idx := 0
	for i, c := range m.question.Choices {
		if c == answer {
			idx = i
		}
	}
	if cmd := press(m, string(rune('1'+idx))); cmd == nil {
		t.Fatalf("expected a save command")
	}
	if m.screen != screenFeedback {
		t.Fatalf("expected feedback screen")
	}
	if m.tally.Correct != 1 || m.tally.Total != 1 {
		t.Fatalf("unexpected tally %+v", m.tally)
	}
	rec := quiz.DecodeRecord(m.items[key])
	if rec != (quiz.ItemRecord{Seen: 1, Correct: 1, LastAnswered: 1000}) {
		t.Fatalf("unexpected item record %+v", rec)
	}
	if !strings.Contains(m.View(), "Oikein") {
		t.Fatalf("feedback view missing success text")
	}

	press(m, "enter")
	if m.screen != screenQuestion {
		t.Fatalf("expected next question")
	}
}

func TestLeavingCategorySavesSession(t *testing.T) {
	m := newTestModel(t, Config{Category: "yrtit"})
	press(m, "enter")
	if cmd := press(m, "esc"); cmd == nil {
		t.Fatalf("expected score save command")
	}
	if m.screen != screenMenu {
		t.Fatalf("expected menu after leaving")
	}
	s := m.scores["yrtit"]
	if s.Sessions != 1 || s.LastScore == nil || s.LastScore.Total != 1 || s.LastScore.Timestamp != 1000 {
		t.Fatalf("unexpected local score %+v", s)
	}
	if m.last == nil || m.last.Category != "yrtit" {
		t.Fatalf("expected last session summary")
	}
}

func TestLeavingWithoutAnswersSkipsSave(t *testing.T) {
	m := newTestModel(t, Config{Category: "yrtit"})
	if cmd := press(m, "esc"); cmd != nil {
		t.Fatalf("expected no save for an empty session")
	}
	if _, ok := m.scores["yrtit"]; ok {
		t.Fatalf("expected no local score")
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := newTestModel(t, Config{Category: "kalat"})
	m.tally = quiz.Tally{Category: "kalat", Correct: 3, Total: 4}
	m.status = "score not saved"
	out := m.renderFooter()
	for _, part := range []string{"Session 3/4", "75.0%", "score not saved"} {
		if !strings.Contains(out, part) {
			t.Fatalf("footer missing %q: %s", part, out)
		}
	}
}
