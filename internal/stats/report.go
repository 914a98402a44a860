package stats

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/quiz"
)

const timeLayout = "2006-01-02 15:04"

// Accuracy returns correct/total in [0,1], or 0 when total is not positive.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// ScoreRows builds one row per category in catalog order. Categories present in
// scores but missing from the catalog follow in key order.
func ScoreRows(cats []catalog.Category, scores model.ScoreMap, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(cats))
	known := make(map[string]struct{}, len(cats))
	for _, cat := range cats {
		known[cat.Key] = struct{}{}
		rows = append(rows, scoreRow(cat.Title(), scores[cat.Key], loc))
	}
	var extra []string
	for key := range scores {
		if _, ok := known[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, scoreRow(key, scores[key], loc))
	}
	return rows
}

func scoreRow(label string, s model.CategoryStats, loc *time.Location) []string {
	if s.LastScore == nil {
		return []string{label, fmt.Sprintf("%d", s.Sessions), "-", "-", "-"}
	}
	last := s.LastScore
	return []string{
		label,
		fmt.Sprintf("%d", s.Sessions),
		fmt.Sprintf("%d/%d", last.Correct, last.Total),
		formatPct(Accuracy(last.Correct, last.Total)),
		time.UnixMilli(last.Timestamp).In(loc).Format(timeLayout),
	}
}

// ScoreHeaders are the columns produced by ScoreRows.
var ScoreHeaders = []string{"Category", "Sessions", "Last", "Accuracy", "Played"}

// RenderScores prints the score table.
func RenderScores(w io.Writer, cats []catalog.Category, scores model.ScoreMap) error {
	return renderScores(w, cats, scores, time.Local)
}

func renderScores(w io.Writer, cats []catalog.Category, scores model.ScoreMap, loc *time.Location) error {
	if len(scores) == 0 {
		_, err := fmt.Fprintln(w, "No scores yet.")
		return err
	}
	return writeLines(w, formatTable(ScoreHeaders, ScoreRows(cats, scores, loc), map[int]bool{1: true, 2: true, 3: true}))
}

// ItemStat is one decoded item record.
type ItemStat struct {
	Key      string
	Category string
	Name     string
	Record   quiz.ItemRecord
}

// ItemStats decodes items, optionally keeping only one category. The result is
// ordered weakest first, ties broken by key.
func ItemStats(items model.ItemStatsMap, category string) []ItemStat {
	out := make([]ItemStat, 0, len(items))
	for key, raw := range items {
		cat, name, ok := catalog.SplitItemKey(key)
		if !ok {
			cat, name = "", key
		}
		if category != "" && cat != category {
			continue
		}
		out = append(out, ItemStat{Key: key, Category: cat, Name: name, Record: quiz.DecodeRecord(raw)})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Record.Accuracy(), out[j].Record.Accuracy()
		if ai == aj {
			return out[i].Key < out[j].Key
		}
		return ai < aj
	})
	return out
}

// Weakest returns up to n item keys with the lowest accuracy among items seen at least once.
func Weakest(items model.ItemStatsMap, category string, n int) []string {
	var keys []string
	for _, it := range ItemStats(items, category) {
		if len(keys) == n {
			break
		}
		if it.Record.Seen > 0 {
			keys = append(keys, it.Key)
		}
	}
	return keys
}

// ItemHeaders are the columns produced by ItemRows.
var ItemHeaders = []string{"Category", "Species", "Seen", "Correct", "Accuracy", "Answered"}

// ItemRows builds table rows for stats.
func ItemRows(stats []ItemStat, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, it := range stats {
		answered := "-"
		if it.Record.LastAnswered > 0 {
			answered = time.UnixMilli(it.Record.LastAnswered).In(loc).Format(timeLayout)
		}
		rows = append(rows, []string{
			it.Category,
			it.Name,
			fmt.Sprintf("%d", it.Record.Seen),
			fmt.Sprintf("%d", it.Record.Correct),
			formatPct(it.Record.Accuracy()),
			answered,
		})
	}
	return rows
}

// RenderItems prints per-species stats, weakest first.
func RenderItems(w io.Writer, items model.ItemStatsMap, category string) error {
	return renderItems(w, items, category, time.Local)
}

func renderItems(w io.Writer, items model.ItemStatsMap, category string, loc *time.Location) error {
	stats := ItemStats(items, category)
	if len(stats) == 0 {
		_, err := fmt.Fprintln(w, "No item stats yet.")
		return err
	}
	return writeLines(w, formatTable(ItemHeaders, ItemRows(stats, loc), map[int]bool{2: true, 3: true, 4: true}))
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
