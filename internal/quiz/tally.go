package quiz

import (
	"encoding/json"
	"time"
)

// Tally counts answers within one category session.
type Tally struct {
	Category string
	Correct  int
	Total    int
}

// Add records one answer.
func (t *Tally) Add(correct bool) {
	t.Total++
	if correct {
		t.Correct++
	}
}

// Reset starts a new session for category.
func (t *Tally) Reset(category string) {
	*t = Tally{Category: category}
}

// ItemRecord is the per-species history the quiz keeps.
type ItemRecord struct {
	Seen         int   `json:"seen"`
	Correct      int   `json:"correct"`
	LastAnswered int64 `json:"lastAnswered"`
}

// Accuracy returns the share of correct answers in [0,1].
func (r ItemRecord) Accuracy() float64 {
	if r.Seen == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Seen)
}

// DecodeRecord reads a stored record. Unknown shapes decode to the zero record.
func DecodeRecord(raw json.RawMessage) ItemRecord {
	var rec ItemRecord
	if len(raw) == 0 {
		return rec
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ItemRecord{}
	}
	return rec
}

// NextRecord folds one answer into the previously stored record.
func NextRecord(prev json.RawMessage, correct bool, at time.Time) ItemRecord {
	rec := DecodeRecord(prev)
	rec.Seen++
	if correct {
		rec.Correct++
	}
	rec.LastAnswered = at.UnixMilli()
	return rec
}
