package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/verte-zerg/lajit/internal/model"
)

// Items keeps per-item statistics. Each save replaces the item's record wholesale.
type Items struct {
	kv     KV
	logger *slog.Logger
	mu     sync.Mutex
}

// NewItems returns an item ledger persisting through kv.
func NewItems(kv KV, opts ...Option) *Items {
	o := buildOptions(opts)
	return &Items{kv: kv, logger: o.logger}
}

// RecordItem applies a SAVE_ITEM_STATS payload. The bool is false when the
// payload lacks an item key or stats; nothing is written in that case.
func (l *Items) RecordItem(ctx context.Context, payload json.RawMessage) (model.ItemStatsMap, bool, error) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return nil, false, nil
	}
	fields := gjson.GetManyBytes(payload, "itemKey", "stats")
	key, stats := fields[0], fields[1]
	if key.Type != gjson.String || !truthy(key) || !truthy(stats) {
		return nil, false, nil
	}
	items, err := l.put(ctx, key.Str, []byte(stats.Raw))
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Record stores stats for itemKey under the same rules as RecordItem.
func (l *Items) Record(ctx context.Context, itemKey string, stats any) (model.ItemStatsMap, bool, error) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return nil, false, fmt.Errorf("encode item stats: %w", err)
	}
	if itemKey == "" || !truthy(gjson.ParseBytes(raw)) {
		return nil, false, nil
	}
	items, err := l.put(ctx, itemKey, raw)
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// GetAll returns every persisted item record, or an empty map when none exist.
func (l *Items) GetAll(ctx context.Context) (model.ItemStatsMap, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items, err := decodeItems(l.load(ctx))
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Items) put(ctx context.Context, itemKey string, stats []byte) (model.ItemStatsMap, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := sjson.SetRawBytes(l.load(ctx), escapePath(itemKey), stats)
	if err != nil {
		return nil, fmt.Errorf("set item %q: %w", itemKey, err)
	}
	if err := l.kv.Put(ctx, ItemStatsKey, doc); err != nil {
		return nil, fmt.Errorf("write item stats: %w", err)
	}
	return decodeItems(doc)
}

// load returns the stored document, or an empty object when it is missing or unreadable.
func (l *Items) load(ctx context.Context) []byte {
	raw, ok, err := l.kv.Get(ctx, ItemStatsKey)
	if err != nil {
		l.logger.Warn("failed to read stored item stats", "error", err)
		return []byte("{}")
	}
	if !ok {
		return []byte("{}")
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		l.logger.Warn("failed to parse stored item stats", "bytes", len(raw))
		return []byte("{}")
	}
	return raw
}

func decodeItems(doc []byte) (model.ItemStatsMap, error) {
	items := model.ItemStatsMap{}
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil, fmt.Errorf("decode item stats: %w", err)
	}
	return items, nil
}

// escapePath turns an item key into a single sjson path component.
func escapePath(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i, r := range key {
		switch r {
		case '\\', '.', '|', '#', '@', '*', '?', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		case ':':
			if i == 0 {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
