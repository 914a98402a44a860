package stats

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/model"
)

func testCategories() []catalog.Category {
	return []catalog.Category{
		{Key: "marjat", Name: "Metsämarjat"},
		{Key: "kalat", Name: "Kalat"},
	}
}

func TestScoreRowsFollowCatalogOrder(t *testing.T) {
	scores := model.ScoreMap{
		"kalat":  {Sessions: 2, LastScore: &model.LastScore{Correct: 1, Total: 4, Timestamp: 0}},
		"zzz":    {Sessions: 1},
		"marjat": {Sessions: 1, LastScore: &model.LastScore{Correct: 3, Total: 4, Timestamp: 60000}},
	}
	rows := ScoreRows(testCategories(), scores, time.UTC)
	want := [][]string{
		{"Metsämarjat", "1", "3/4", "75.0%", "1970-01-01 00:01"},
		{"Kalat", "2", "1/4", "25.0%", "1970-01-01 00:00"},
		{"zzz", "1", "-", "-", "-"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows:\n%v\nwant\n%v", rows, want)
	}
}

func TestRenderScoresEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderScores(&buf, testCategories(), model.ScoreMap{}, time.UTC); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No scores yet.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderScoresTable(t *testing.T) {
	var buf bytes.Buffer
	scores := model.ScoreMap{"kalat": {Sessions: 1, LastScore: &model.LastScore{Correct: 2, Total: 2}}}
	if err := renderScores(&buf, testCategories(), scores, time.UTC); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "Category") || !strings.Contains(lines[2], "100.0%") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}
}

func rawRecord(t *testing.T, seen, correct int, at int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]int64{"seen": int64(seen), "correct": int64(correct), "lastAnswered": at})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestItemStatsWeakestFirst(t *testing.T) {
	items := model.ItemStatsMap{
		"kalat::Hauki":     rawRecord(t, 4, 4, 1),
		"kalat::Kuha":      rawRecord(t, 4, 1, 2),
		"marjat::Mustikka": rawRecord(t, 2, 1, 3),
		"kalat::Ahven":     json.RawMessage(`"not a record"`),
	}
	all := ItemStats(items, "")
	var keys []string
	for _, it := range all {
		keys = append(keys, it.Key)
	}
	want := []string{"kalat::Ahven", "kalat::Kuha", "marjat::Mustikka", "kalat::Hauki"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("unexpected order %v", keys)
	}

	fish := ItemStats(items, "kalat")
	if len(fish) != 3 || fish[0].Name != "Ahven" {
		t.Fatalf("unexpected category filter result: %+v", fish)
	}

	if got := Weakest(items, "", 2); !reflect.DeepEqual(got, []string{"kalat::Kuha", "marjat::Mustikka"}) {
		t.Fatalf("unexpected weakest %v", got)
	}
}

func TestRenderItems(t *testing.T) {
	var buf bytes.Buffer
	if err := renderItems(&buf, model.ItemStatsMap{}, "", time.UTC); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No item stats yet.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	items := model.ItemStatsMap{"kalat::Hauki": rawRecord(t, 2, 1, 120000)}
	if err := renderItems(&buf, items, "", time.UTC); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", buf.String())
	}
	for _, part := range []string{"kalat", "Hauki", "50.0%", "1970-01-01 00:02"} {
		if !strings.Contains(lines[1], part) {
			t.Fatalf("row %q missing %q", lines[1], part)
		}
	}
}

func TestAccuracy(t *testing.T) {
	if Accuracy(1, 0) != 0 || Accuracy(3, 4) != 0.75 {
		t.Fatalf("unexpected accuracy values")
	}
}
