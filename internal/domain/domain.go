package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a quiz room.
type Status string

const (
	// StatusLobby accepts joins; no question is active yet.
	StatusLobby Status = "lobby"
	// StatusPlaying accepts question broadcasts and answer submissions.
	StatusPlaying Status = "playing"
	// StatusEnded is terminal.
	StatusEnded Status = "ended"
)

// RoomInfo is an immutable snapshot of a room's identity, taken at creation.
type RoomInfo struct {
	Code            string
	Host            string
	DurationMinutes int
	CreateTime      time.Time
}

// Score is one participant's accumulated score within a room.
type Score struct {
	RoomCode   string
	ConnID     string
	Total      decimal.Decimal
	UpdateTime time.Time
}

// Leaderboard is the ranked projection of a room's scores, sorted by score
// in descending order. Ties keep the order in which the scores were first
// recorded.
type Leaderboard struct {
	RoomCode string
	Entries  []LeaderboardEntry
}

// LeaderboardEntry is marshaled as-is onto the wire.
type LeaderboardEntry struct {
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
}
