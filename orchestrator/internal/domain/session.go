package domain

import (
	"encoding/json"
	"time"
)

// Session is one orchestrated request.
type Session struct {
	SessionID string        `json:"session_id"`
	Mode      Mode          `json:"mode"`
	Input     string        `json:"input"`
	Iteration int           `json:"iteration"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Event is a persisted trace event for replay.
type Event struct {
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Ts        int64           `json:"ts"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}
