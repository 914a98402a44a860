package quiz

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/verte-zerg/lajit/internal/catalog"
)

func testCategory(n int) catalog.Category {
	cat := catalog.Category{Key: "kalat", Name: "Kalat"}
	for i := 0; i < n; i++ {
		cat.Species = append(cat.Species, catalog.Species{
			Name:  string(rune('A' + i)),
			Hints: []string{"hint"},
		})
	}
	return cat
}

func TestNextBuildsDistinctChoices(t *testing.T) {
	g := NewWithSeed(1)
	cat := testCategory(9)
	for i := 0; i < 20; i++ {
		q, err := g.Next(cat, DefaultChoices)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if len(q.Choices) != DefaultChoices {
			t.Fatalf("expected %d choices, got %v", DefaultChoices, q.Choices)
		}
		seen := map[string]bool{}
		found := false
		for _, c := range q.Choices {
			if seen[c] {
				t.Fatalf("duplicate choice %q in %v", c, q.Choices)
			}
			seen[c] = true
			if q.Correct(c) {
				found = true
			}
		}
		if !found {
			t.Fatalf("answer %q missing from %v", q.Answer.Name, q.Choices)
		}
		if q.ItemKey() != "kalat::"+q.Answer.Name {
			t.Fatalf("unexpected item key %q", q.ItemKey())
		}
	}
}

func TestNextAvoidsRepeatsUntilExhausted(t *testing.T) {
	g := NewWithSeed(7)
	cat := testCategory(5)
	seen := map[string]bool{}
	for i := 0; i < len(cat.Species); i++ {
		q, err := g.Next(cat, DefaultChoices)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if seen[q.Answer.Name] {
			t.Fatalf("species %q repeated before exhaustion", q.Answer.Name)
		}
		seen[q.Answer.Name] = true
	}
	if _, err := g.Next(cat, DefaultChoices); err != nil {
		t.Fatalf("expected pool to reset, got %v", err)
	}
}

func TestNextCapsChoicesToCategorySize(t *testing.T) {
	g := NewWithSeed(3)
	q, err := g.Next(testCategory(3), 6)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(q.Choices) != 3 {
		t.Fatalf("expected 3 choices, got %v", q.Choices)
	}
	if _, err := g.Next(catalog.Category{Key: "x"}, 4); err == nil {
		t.Fatalf("expected error for empty category")
	}
}

func TestTally(t *testing.T) {
	var tally Tally
	tally.Reset("yrtit")
	tally.Add(true)
	tally.Add(false)
	tally.Add(true)
	if tally.Category != "yrtit" || tally.Correct != 2 || tally.Total != 3 {
		t.Fatalf("unexpected tally: %+v", tally)
	}
	tally.Reset("kalat")
	if tally.Total != 0 || tally.Category != "kalat" {
		t.Fatalf("expected reset tally, got %+v", tally)
	}
}

func TestNextRecord(t *testing.T) {
	at := time.UnixMilli(5000)
	rec := NextRecord(nil, true, at)
	if rec != (ItemRecord{Seen: 1, Correct: 1, LastAnswered: 5000}) {
		t.Fatalf("unexpected first record: %+v", rec)
	}
	raw, _ := json.Marshal(rec)
	rec = NextRecord(raw, false, time.UnixMilli(6000))
	if rec != (ItemRecord{Seen: 2, Correct: 1, LastAnswered: 6000}) {
		t.Fatalf("unexpected second record: %+v", rec)
	}
	if rec.Accuracy() != 0.5 {
		t.Fatalf("unexpected accuracy %v", rec.Accuracy())
	}
	if got := NextRecord(json.RawMessage(`"junk"`), false, at); got.Seen != 1 {
		t.Fatalf("expected junk to restart history, got %+v", got)
	}
}
