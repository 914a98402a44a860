package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/lajit/internal/coordinator"
	"github.com/verte-zerg/lajit/internal/ledger"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/store"
)

func newRegistry(t *testing.T) (*coordinator.Registry, *ledger.Scores, *ledger.Items) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "lajit.db"), store.DefaultScope)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	scores := ledger.NewScores(st)
	items := ledger.NewItems(st)
	reg := coordinator.NewRegistry(nil)
	t.Cleanup(func() {
		reg.Shutdown()
		_ = st.Close()
	})
	return reg, scores, items
}

func install(t *testing.T, reg *coordinator.Registry, scores *ledger.Scores, items *ledger.Items) {
	t.Helper()
	if err := reg.Install(coordinator.New(scores, items)); err != nil {
		t.Fatalf("install: %v", err)
	}
}

func startTab(t *testing.T, reg *coordinator.Registry, opts ...Option) *Tab {
	t.Helper()
	tab := New(reg, opts...)
	tab.Start(context.Background())
	t.Cleanup(tab.Close)
	return tab
}

func await(t *testing.T, tab *Tab, msgType string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tab.Await(ctx, msgType); err != nil {
		t.Fatalf("await %s: %v", msgType, err)
	}
}

func TestStartRequestsInitialState(t *testing.T) {
	reg, scores, items := newRegistry(t)
	ctx := context.Background()
	if _, _, err := scores.RecordResult(ctx, ledger.SessionResult{Category: "marjat", Correct: 3, Total: 4}); err != nil {
		t.Fatalf("seed scores: %v", err)
	}
	if _, _, err := items.Record(ctx, "marjat::Mustikka", map[string]int{"seen": 1}); err != nil {
		t.Fatalf("seed items: %v", err)
	}
	install(t, reg, scores, items)

	tab := startTab(t, reg)
	await(t, tab, model.TypeScoresUpdated)
	await(t, tab, model.TypeItemStatsUpdated)

	if got := tab.Scores(); got["marjat"].Sessions != 1 {
		t.Fatalf("unexpected scores: %+v", got)
	}
	if got := tab.ItemStats(); len(got["marjat::Mustikka"]) == 0 {
		t.Fatalf("unexpected item stats: %v", got)
	}
}

func TestBootstrapWaitsForReadiness(t *testing.T) {
	reg, scores, items := newRegistry(t)
	tab := startTab(t, reg)

	time.Sleep(10 * time.Millisecond)
	install(t, reg, scores, items)
	await(t, tab, model.TypeScoresUpdated)
}

func TestSaveScoreReachesEveryTab(t *testing.T) {
	reg, scores, items := newRegistry(t)
	install(t, reg, scores, items)
	clock := func() time.Time { return time.UnixMilli(1000) }
	a := startTab(t, reg, WithClock(clock))
	b := startTab(t, reg)
	await(t, a, model.TypeScoresUpdated)
	await(t, b, model.TypeScoresUpdated)

	if !a.SaveScore(context.Background(), "marjat", 3, 4) {
		t.Fatalf("expected save to be posted")
	}
	local := a.Scores()["marjat"]
	if local.Sessions != 1 || local.LastScore.Timestamp != 1000 {
		t.Fatalf("expected optimistic local update, got %+v", local)
	}

	await(t, b, model.TypeScoresUpdated)
	got := b.Scores()["marjat"]
	want := model.LastScore{Correct: 3, Total: 4, Timestamp: 1000}
	if got.Sessions != 1 || got.LastScore == nil || *got.LastScore != want {
		t.Fatalf("unexpected broadcast state on other tab: %+v", got)
	}
}

func TestSaveScoreSkipsEmptySession(t *testing.T) {
	reg, scores, items := newRegistry(t)
	install(t, reg, scores, items)
	tab := startTab(t, reg)
	if tab.SaveScore(context.Background(), "kalat", 0, 0) {
		t.Fatalf("expected empty session to be skipped")
	}
	if len(tab.Scores()) != 0 {
		t.Fatalf("expected no local change, got %+v", tab.Scores())
	}
}

func TestPostDroppedWhenCoordinatorNeverReady(t *testing.T) {
	reg, _, _ := newRegistry(t)
	tab := New(reg, WithReadyTimeout(20*time.Millisecond))
	t.Cleanup(tab.Close)

	start := time.Now()
	if tab.RequestScores(context.Background()) {
		t.Fatalf("expected request to be dropped")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("ready wait was not bounded")
	}
}

func TestBroadcastReplacesLocalState(t *testing.T) {
	reg, _, _ := newRegistry(t)
	tab := New(reg, WithCategories([]string{"marjat", "kalat"}))

	first, _ := model.ScoresUpdated(model.ScoreMap{
		"marjat":  {Sessions: 2},
		"unknown": {Sessions: 9},
	})
	if !tab.apply(first) {
		t.Fatalf("expected update to apply")
	}
	if got := tab.Scores(); len(got) != 1 || got["marjat"].Sessions != 2 {
		t.Fatalf("expected unknown categories filtered, got %+v", got)
	}

	second, _ := model.ScoresUpdated(model.ScoreMap{"kalat": {Sessions: 1}})
	tab.apply(second)
	got := tab.Scores()
	if _, ok := got["marjat"]; ok {
		t.Fatalf("expected wholesale replacement, got %+v", got)
	}
	if got["kalat"].Sessions != 1 {
		t.Fatalf("unexpected scores: %+v", got)
	}

	if tab.apply(model.Message{Type: model.TypeItemStatsUpdated, Payload: json.RawMessage(`{broken`)}) {
		t.Fatalf("expected undecodable payload to be ignored")
	}
	if tab.apply(model.Message{Type: "SOMETHING_ELSE"}) {
		t.Fatalf("expected unknown message to be ignored")
	}
}

func TestSaveItemStatsRoundTrip(t *testing.T) {
	reg, scores, items := newRegistry(t)
	install(t, reg, scores, items)
	a := startTab(t, reg)
	b := startTab(t, reg)
	await(t, b, model.TypeItemStatsUpdated)

	if !a.SaveItemStats(context.Background(), "kalat::Hauki", map[string]int{"seen": 1, "correct": 1}) {
		t.Fatalf("expected item save to be posted")
	}
	await(t, b, model.TypeItemStatsUpdated)
	var rec map[string]int
	if err := json.Unmarshal(b.ItemStats()["kalat::Hauki"], &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["seen"] != 1 || rec["correct"] != 1 {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestClearScoresBroadcastsEmpty(t *testing.T) {
	reg, scores, items := newRegistry(t)
	if _, _, err := scores.RecordResult(context.Background(), ledger.SessionResult{Category: "yrtit", Correct: 1, Total: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	install(t, reg, scores, items)
	tab := startTab(t, reg)
	await(t, tab, model.TypeScoresUpdated)
	if len(tab.Scores()) != 1 {
		t.Fatalf("expected seeded scores, got %+v", tab.Scores())
	}

	tab.ClearScores(context.Background())
	await(t, tab, model.TypeScoresUpdated)
	if len(tab.Scores()) != 0 {
		t.Fatalf("expected empty scores after clear, got %+v", tab.Scores())
	}
}

func TestDeliverAfterCloseIsRejected(t *testing.T) {
	reg, _, _ := newRegistry(t)
	tab := New(reg)
	tab.Start(context.Background())
	tab.Close()
	msg, _ := model.ScoresUpdated(model.ScoreMap{})
	if tab.Deliver(msg) {
		t.Fatalf("expected closed tab to reject delivery")
	}
	if len(reg.Clients()) != 0 {
		t.Fatalf("expected tab to be detached")
	}
}
