package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/verte-zerg/lajit/internal/model"
)

// Scores keeps per-category session statistics.
type Scores struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles so concurrent saves for
	// different categories cannot overwrite each other.
	mu sync.Mutex
}

// SessionResult is a completed quiz session in a category.
// A zero At is replaced with the current time.
type SessionResult struct {
	Category string
	Correct  int
	Total    int
	At       time.Time
}

// NewScores returns a score ledger persisting through kv.
func NewScores(kv KV, opts ...Option) *Scores {
	o := buildOptions(opts)
	return &Scores{kv: kv, logger: o.logger, now: o.now}
}

// RecordSession applies a SAVE_SCORE payload. The bool is false when the
// payload is malformed; nothing is written in that case.
func (s *Scores) RecordSession(ctx context.Context, payload json.RawMessage) (model.ScoreMap, bool, error) {
	category, last, ok := s.parseSession(payload)
	if !ok {
		return nil, false, nil
	}
	scores, err := s.record(ctx, category, last)
	if err != nil {
		return nil, false, err
	}
	return scores, true, nil
}

// RecordResult records a typed session result under the same rules as RecordSession.
func (s *Scores) RecordResult(ctx context.Context, res SessionResult) (model.ScoreMap, bool, error) {
	if !validSession(res.Category, res.Correct, res.Total) {
		return nil, false, nil
	}
	at := res.At
	if at.IsZero() {
		at = s.now()
	}
	scores, err := s.record(ctx, res.Category, model.LastScore{
		Correct:   res.Correct,
		Total:     res.Total,
		Timestamp: at.UnixMilli(),
	})
	if err != nil {
		return nil, false, err
	}
	return scores, true, nil
}

// GetAll returns the persisted scores, or an empty map when none exist.
func (s *Scores) GetAll(ctx context.Context) (model.ScoreMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx), nil
}

// Clear removes every persisted score and returns the resulting empty map.
func (s *Scores) Clear(ctx context.Context) (model.ScoreMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, ScoreKey); err != nil {
		return nil, fmt.Errorf("delete scores: %w", err)
	}
	return model.ScoreMap{}, nil
}

func (s *Scores) record(ctx context.Context, category string, last model.LastScore) (model.ScoreMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := s.load(ctx)
	existing := scores[category]
	scores[category] = model.CategoryStats{
		Sessions:  existing.Sessions + 1,
		LastScore: &last,
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	if err := s.kv.Put(ctx, ScoreKey, raw); err != nil {
		return nil, fmt.Errorf("write scores: %w", err)
	}
	return scores, nil
}

func (s *Scores) load(ctx context.Context) model.ScoreMap {
	raw, ok, err := s.kv.Get(ctx, ScoreKey)
	if err != nil {
		s.logger.Warn("failed to read stored scores", "error", err)
		return model.ScoreMap{}
	}
	if !ok {
		return model.ScoreMap{}
	}
	var scores model.ScoreMap
	if err := json.Unmarshal(raw, &scores); err != nil {
		s.logger.Warn("failed to parse stored scores", "error", err)
		return model.ScoreMap{}
	}
	if scores == nil {
		scores = model.ScoreMap{}
	}
	return scores
}

func (s *Scores) parseSession(payload json.RawMessage) (string, model.LastScore, bool) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return "", model.LastScore{}, false
	}
	fields := gjson.GetManyBytes(payload, "category", "correct", "total", "timestamp")
	category := fields[0]
	if category.Type != gjson.String || !truthy(category) {
		return "", model.LastScore{}, false
	}
	correct, ok := number(fields[1])
	if !ok {
		return "", model.LastScore{}, false
	}
	total, ok := number(fields[2])
	if !ok {
		return "", model.LastScore{}, false
	}
	c, t := int(math.Trunc(correct)), int(math.Trunc(total))
	if !validSession(category.Str, c, t) {
		return "", model.LastScore{}, false
	}
	timestamp := s.now().UnixMilli()
	if ts, ok := number(fields[3]); ok {
		timestamp = int64(ts)
	}
	return category.Str, model.LastScore{Correct: c, Total: t, Timestamp: timestamp}, true
}

func validSession(category string, correct, total int) bool {
	if category == "" {
		return false
	}
	if correct < 0 || total < 0 {
		return false
	}
	return correct <= total
}
