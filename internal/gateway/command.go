package gateway

import (
	"encoding/json"
	"strings"

	"github.com/quizwire/quizwire/internal/errors"
)

// Inbound command events.
const (
	cmdJoin         = "join"
	cmdSubmitAnswer = "submitAnswer"
	cmdCreateRoom   = "createRoom"
	cmdSetPlaying   = "setPlaying"
	cmdSendQuestion = "sendQuestion"
)

// Outbound events.
const (
	evtAck               = "ack"
	evtRosterUpdate      = "rosterUpdate"
	evtSessionDuration   = "sessionDuration"
	evtQuestionBroadcast = "questionBroadcast"
	evtSessionStarted    = "sessionStarted"
	evtLeaderboardUpdate = "leaderboardUpdate"
)

var errInvalidRequest = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("Invalid request"))

// envelope is the inbound frame shape: {"event": ..., "data": ...}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// frame is the outbound shape. The For field ties an ack back to the
// command it answers; broadcasts leave it empty.
type frame struct {
	Event string `json:"event"`
	For   string `json:"for,omitempty"`
	Data  any    `json:"data"`
}

// command is the closed set of inbound realtime commands. Every variant is
// handled in the gateway's dispatch switch; leaveCmd is synthesized on
// disconnect and never arrives from the wire.
type command interface{ isCommand() }

type joinCmd struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
}

type submitAnswerCmd struct {
	RoomCode      string   `json:"roomCode"`
	Answer        any      `json:"answer"`
	CorrectAnswer any      `json:"correctAnswer"`
	TimeTaken     *float64 `json:"timeTaken"`
	TotalTime     *float64 `json:"totalTime"`
}

type createRoomCmd struct {
	HostName        string `json:"hostName"`
	DurationMinutes int    `json:"durationMinutes"`
}

type setPlayingCmd struct {
	RoomCode string `json:"roomCode"`
	Play     *bool  `json:"play"`
}

type sendQuestionCmd struct {
	RoomCode string          `json:"roomCode"`
	Question json.RawMessage `json:"question"`
}

type leaveCmd struct {
	connID string
}

func (joinCmd) isCommand()         {}
func (submitAnswerCmd) isCommand() {}
func (createRoomCmd) isCommand()   {}
func (setPlayingCmd) isCommand()   {}
func (sendQuestionCmd) isCommand() {}
func (leaveCmd) isCommand()        {}

// parseCommand decodes one inbound frame into its command variant and
// validates it before any room is touched. Host-only commands are rejected
// on the participant channel and vice versa.
func parseCommand(env envelope, host bool) (command, error) {
	switch env.Event {
	case cmdJoin:
		if host {
			return nil, errInvalidRequest
		}
		var c joinCmd
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, errInvalidRequest
		}
		if blank(c.RoomCode) || blank(c.DisplayName) {
			return nil, errInvalidRequest
		}
		return c, nil

	case cmdSubmitAnswer:
		if host {
			return nil, errInvalidRequest
		}
		var c submitAnswerCmd
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, errInvalidRequest
		}
		if blank(c.RoomCode) ||
			c.TimeTaken == nil || *c.TimeTaken < 0 ||
			c.TotalTime == nil || *c.TotalTime <= 0 ||
			!isScalar(c.Answer) || !isScalar(c.CorrectAnswer) {
			return nil, errInvalidRequest
		}
		return c, nil

	case cmdCreateRoom:
		if !host {
			return nil, errInvalidRequest
		}
		var c createRoomCmd
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, errInvalidRequest
		}
		if blank(c.HostName) || c.DurationMinutes <= 0 {
			return nil, errInvalidRequest
		}
		return c, nil

	case cmdSetPlaying:
		if !host {
			return nil, errInvalidRequest
		}
		var c setPlayingCmd
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, errInvalidRequest
		}
		if blank(c.RoomCode) || c.Play == nil {
			return nil, errInvalidRequest
		}
		return c, nil

	case cmdSendQuestion:
		if !host {
			return nil, errInvalidRequest
		}
		var c sendQuestionCmd
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, errInvalidRequest
		}
		if blank(c.RoomCode) || len(c.Question) == 0 || string(c.Question) == "null" {
			return nil, errInvalidRequest
		}
		return c, nil

	default:
		return nil, errInvalidRequest
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// isScalar reports whether a decoded JSON value is a comparable scalar.
// Answers are opaque but must be scalars so the correctness check is exact
// equality.
func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool:
		return true
	default:
		return false
	}
}
