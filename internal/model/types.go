// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
)

// Request types sent by tabs.
const (
	TypeSaveScore        = "SAVE_SCORE"
	TypeRequestScores    = "REQUEST_SCORES"
	TypeClearScores      = "CLEAR_SCORES"
	TypeSaveItemStats    = "SAVE_ITEM_STATS"
	TypeRequestItemStats = "REQUEST_ITEM_STATS"
)

// Message types posted back to tabs.
const (
	TypeScoresUpdated    = "SCORES_UPDATED"
	TypeItemStatsUpdated = "ITEM_STATS_UPDATED"
)

// LastScore is the outcome of the most recent session in a category.
type LastScore struct {
	Correct   int   `json:"correct"`
	Total     int   `json:"total"`
	Timestamp int64 `json:"timestamp"`
}

// CategoryStats summarizes completed sessions for one category.
type CategoryStats struct {
	Sessions  int        `json:"sessions"`
	LastScore *LastScore `json:"lastScore,omitempty"`
}

// ScoreMap maps category keys to their stats.
type ScoreMap map[string]CategoryStats

// Clone returns a deep copy of the map.
func (m ScoreMap) Clone() ScoreMap {
	out := make(ScoreMap, len(m))
	for k, v := range m {
		if v.LastScore != nil {
			ls := *v.LastScore
			v.LastScore = &ls
		}
		out[k] = v
	}
	return out
}

// ItemStatsMap maps item keys to stats records owned by the UI.
// Values are kept as raw JSON; persistence never looks inside them.
type ItemStatsMap map[string]json.RawMessage

// Clone returns a deep copy of the map.
func (m ItemStatsMap) Clone() ItemStatsMap {
	out := make(ItemStatsMap, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Request is the envelope a tab posts to the coordinator.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest encodes payload into a request envelope. A nil payload is omitted.
func NewRequest(typ string, payload any) (Request, error) {
	req := Request{Type: typ}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	req.Payload = raw
	return req, nil
}

// Message is the envelope the coordinator posts to tabs.
// Payload carries the complete, authoritative map.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ScoresUpdated builds a SCORES_UPDATED message.
func ScoresUpdated(scores ScoreMap) (Message, error) {
	if scores == nil {
		scores = ScoreMap{}
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return Message{}, fmt.Errorf("encode scores: %w", err)
	}
	return Message{Type: TypeScoresUpdated, Payload: raw}, nil
}

// ItemStatsUpdated builds an ITEM_STATS_UPDATED message.
func ItemStatsUpdated(items ItemStatsMap) (Message, error) {
	if items == nil {
		items = ItemStatsMap{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return Message{}, fmt.Errorf("encode item stats: %w", err)
	}
	return Message{Type: TypeItemStatsUpdated, Payload: raw}, nil
}

// SaveScorePayload is the body of a SAVE_SCORE request.
type SaveScorePayload struct {
	Category  string `json:"category"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
	Timestamp int64  `json:"timestamp"`
}

// SaveItemStatsPayload is the body of a SAVE_ITEM_STATS request.
type SaveItemStatsPayload struct {
	ItemKey string          `json:"itemKey"`
	Stats   json.RawMessage `json:"stats"`
}
