package domain

const (
	EventNameRoomCreated        = "room.created"
	EventNameRosterUpdated      = "roster.updated"
	EventNameStatusChanged      = "session.status"
	EventNameQuestionSent       = "question.sent"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventRoomCreated struct {
	Room RoomInfo
}

func (EventRoomCreated) Name() string { return EventNameRoomCreated }

// EventRosterUpdated carries the full roster snapshot, not a diff.
type EventRosterUpdated struct {
	RoomCode string
	Roster   []string
}

func (EventRosterUpdated) Name() string { return EventNameRosterUpdated }

type EventStatusChanged struct {
	RoomCode string
	Status   Status
}

func (EventStatusChanged) Name() string { return EventNameStatusChanged }

// EventQuestionSent forwards the host's opaque question payload together
// with the room's configured duration.
type EventQuestionSent struct {
	RoomCode        string
	Question        any
	DurationMinutes int
}

func (EventQuestionSent) Name() string { return EventNameQuestionSent }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
