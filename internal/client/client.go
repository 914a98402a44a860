// Package client is the per-tab side of the persistence protocol.
package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/lajit/internal/coordinator"
	"github.com/verte-zerg/lajit/internal/model"
)

// DefaultReadyTimeout bounds how long a send waits for a coordinator to become active.
const DefaultReadyTimeout = 3 * time.Second

const (
	inboxSize   = 16
	updatesSize = 8
)

// Option configures a Tab.
type Option func(*Tab)

// WithLogger sets the tab logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tab) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithReadyTimeout bounds how long sends wait for a coordinator.
func WithReadyTimeout(d time.Duration) Option {
	return func(t *Tab) {
		if d > 0 {
			t.readyTimeout = d
		}
	}
}

// WithCategories drops score entries for categories outside keys.
func WithCategories(keys []string) Option {
	return func(t *Tab) {
		t.categories = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			t.categories[k] = struct{}{}
		}
	}
}

// WithClock overrides the time source used for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tab) {
		if now != nil {
			t.now = now
		}
	}
}

// Tab holds one open view's copy of the persisted maps and talks to the
// registry's active coordinator on its behalf.
type Tab struct {
	id           string
	reg          *coordinator.Registry
	logger       *slog.Logger
	readyTimeout time.Duration
	categories   map[string]struct{}
	now          func() time.Time

	inbox   chan model.Message
	updates chan model.Message
	closed  atomic.Bool

	mu     sync.RWMutex
	scores model.ScoreMap
	items  model.ItemStatsMap

	detach func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a tab bound to reg. Call Start to attach it.
func New(reg *coordinator.Registry, opts ...Option) *Tab {
	t := &Tab{
		id:           uuid.NewString(),
		reg:          reg,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		readyTimeout: DefaultReadyTimeout,
		now:          time.Now,
		inbox:        make(chan model.Message, inboxSize),
		updates:      make(chan model.Message, updatesSize),
		scores:       model.ScoreMap{},
		items:        model.ItemStatsMap{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("tab", t.id)
	return t
}

// ID implements coordinator.Port.
func (t *Tab) ID() string {
	return t.id
}

// Deliver implements coordinator.Port. When the inbox is full the oldest
// pending message is discarded; every payload is a complete snapshot.
func (t *Tab) Deliver(msg model.Message) bool {
	if t.closed.Load() {
		return false
	}
	return offer(t.inbox, msg)
}

// Start attaches the tab, begins applying updates and, once a coordinator is
// ready, requests the current scores and item stats.
func (t *Tab) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.detach = t.reg.Attach(t)

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		t.receive(ctx)
	}()
	go func() {
		defer t.wg.Done()
		if _, err := t.reg.Ready(ctx); err != nil {
			return
		}
		t.RequestScores(ctx)
		t.RequestItemStats(ctx)
	}()
}

// Close detaches the tab and stops its goroutines.
func (t *Tab) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if t.detach != nil {
		t.detach()
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// Updates signals each applied SCORES_UPDATED or ITEM_STATS_UPDATED message.
// Slow readers only miss older signals.
func (t *Tab) Updates() <-chan model.Message {
	return t.updates
}

// Scores returns a copy of the tab's score map.
func (t *Tab) Scores() model.ScoreMap {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scores.Clone()
}

// ItemStats returns a copy of the tab's item stats map.
func (t *Tab) ItemStats() model.ItemStatsMap {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items.Clone()
}

// Post sends req to the active coordinator, waiting up to the ready timeout
// when none is active yet. Undeliverable requests are logged and dropped.
func (t *Tab) Post(ctx context.Context, req model.Request) bool {
	c := t.reg.Controller()
	if c == nil {
		waitCtx, cancel := context.WithTimeout(ctx, t.readyTimeout)
		defer cancel()
		var err error
		c, err = t.reg.Ready(waitCtx)
		if err != nil {
			t.logger.Warn("coordinator not ready, dropping request", "type", req.Type, "error", err)
			return false
		}
	}
	if err := c.Post(req, t); err != nil {
		t.logger.Warn("failed to post request", "type", req.Type, "error", err)
		return false
	}
	return true
}

// SaveScore records a finished session locally and asks the coordinator to persist it.
// Sessions without answers are skipped.
func (t *Tab) SaveScore(ctx context.Context, category string, correct, total int) bool {
	if total <= 0 {
		return false
	}
	timestamp := t.now().UnixMilli()
	t.mu.Lock()
	prev := t.scores[category]
	t.scores[category] = model.CategoryStats{
		Sessions:  prev.Sessions + 1,
		LastScore: &model.LastScore{Correct: correct, Total: total, Timestamp: timestamp},
	}
	t.mu.Unlock()

	req, err := model.NewRequest(model.TypeSaveScore, model.SaveScorePayload{
		Category:  category,
		Correct:   correct,
		Total:     total,
		Timestamp: timestamp,
	})
	if err != nil {
		t.logger.Warn("failed to encode score", "error", err)
		return false
	}
	return t.Post(ctx, req)
}

// SaveItemStats replaces the stats for itemKey locally and asks the coordinator to persist them.
func (t *Tab) SaveItemStats(ctx context.Context, itemKey string, stats any) bool {
	raw, err := json.Marshal(stats)
	if err != nil {
		t.logger.Warn("failed to encode item stats", "item", itemKey, "error", err)
		return false
	}
	t.mu.Lock()
	t.items[itemKey] = raw
	t.mu.Unlock()

	req, err := model.NewRequest(model.TypeSaveItemStats, model.SaveItemStatsPayload{ItemKey: itemKey, Stats: raw})
	if err != nil {
		t.logger.Warn("failed to encode item stats", "item", itemKey, "error", err)
		return false
	}
	return t.Post(ctx, req)
}

// RequestScores asks for the persisted scores.
func (t *Tab) RequestScores(ctx context.Context) bool {
	return t.Post(ctx, model.Request{Type: model.TypeRequestScores})
}

// RequestItemStats asks for the persisted item stats.
func (t *Tab) RequestItemStats(ctx context.Context) bool {
	return t.Post(ctx, model.Request{Type: model.TypeRequestItemStats})
}

// ClearScores asks the coordinator to wipe every persisted score.
func (t *Tab) ClearScores(ctx context.Context) bool {
	return t.Post(ctx, model.Request{Type: model.TypeClearScores})
}

// Await blocks until an update of msgType is applied or ctx is done.
func (t *Tab) Await(ctx context.Context, msgType string) error {
	for {
		select {
		case msg := <-t.updates:
			if msg.Type == msgType {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tab) receive(ctx context.Context) {
	for {
		select {
		case msg := <-t.inbox:
			if t.apply(msg) {
				offer(t.updates, msg)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tab) apply(msg model.Message) bool {
	switch msg.Type {
	case model.TypeScoresUpdated:
		var incoming model.ScoreMap
		if err := json.Unmarshal(msg.Payload, &incoming); err != nil {
			t.logger.Warn("failed to decode scores update", "error", err)
			return false
		}
		scores := model.ScoreMap{}
		for k, v := range incoming {
			if t.categories != nil {
				if _, ok := t.categories[k]; !ok {
					continue
				}
			}
			scores[k] = v
		}
		t.mu.Lock()
		t.scores = scores
		t.mu.Unlock()
		return true
	case model.TypeItemStatsUpdated:
		var incoming model.ItemStatsMap
		if err := json.Unmarshal(msg.Payload, &incoming); err != nil {
			t.logger.Warn("failed to decode item stats update", "error", err)
			return false
		}
		if incoming == nil {
			incoming = model.ItemStatsMap{}
		}
		t.mu.Lock()
		t.items = incoming
		t.mu.Unlock()
		return true
	default:
		return false
	}
}

// offer sends msg without blocking, discarding the oldest queued message when full.
func offer(ch chan model.Message, msg model.Message) bool {
	for i := 0; i < cap(ch)+1; i++ {
		select {
		case ch <- msg:
			return true
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
	return false
}
