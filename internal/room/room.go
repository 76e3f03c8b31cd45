package room

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/errors"
	"github.com/quizwire/quizwire/internal/score"
)

// Client-visible errors. The gateway sends Message verbatim as the error
// string of the failing ack.
var (
	ErrRoomNotFound    = errors.New(errors.CodeNotFound, errors.WithMessagef("Room not found"))
	ErrAlreadyAnswered = errors.New(errors.CodeAlreadyExists, errors.WithMessagef("Already answered"))
	ErrTimeUp          = errors.New(errors.CodeDeadlineExceeded, errors.WithMessagef("Time is up"))
	ErrNotPlaying      = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("Session is not playing"))
	ErrNoQuestion      = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("No active question"))
	ErrNotStarted      = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("Session has not started"))
	ErrEnded           = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("Session already ended"))
)

type participant struct {
	connID string
	name   string
}

type scoreEntry struct {
	connID string
	name   string
	total  decimal.Decimal
}

// ScoreSnapshot is one accumulated score, in the order scores were first
// recorded. DisplayName is the roster name when the participant is still
// connected, otherwise the last name seen.
type ScoreSnapshot struct {
	ConnID      string
	DisplayName string
	Total       decimal.Decimal
}

// Room is the unit of shared state for one live session: roster, scores,
// status and timing. A single mutex serializes every mutation, so commands
// against one room are processed one at a time.
type Room struct {
	info           domain.RoomInfo
	questionBudget time.Duration

	mu           sync.Mutex
	status       domain.Status
	roster       []participant
	scores       []scoreEntry
	scoreIdx     map[string]int
	questionIdx  int
	deadline     time.Time
	lastAnswered map[string]int
	endedAt      time.Time
}

func newRoom(info domain.RoomInfo, questionBudget time.Duration) *Room {
	return &Room{
		info:           info,
		questionBudget: questionBudget,
		status:         domain.StatusLobby,
		scoreIdx:       make(map[string]int),
		lastAnswered:   make(map[string]int),
	}
}

func (r *Room) Info() domain.RoomInfo { return r.info }

func (r *Room) Code() string { return r.info.Code }

func (r *Room) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Join adds the connection to the roster and returns the full roster
// snapshot. Joining again under the same connection updates the display
// name instead of adding a second entry.
func (r *Room) Join(connID, name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.roster {
		if r.roster[i].connID == connID {
			r.roster[i].name = name
			return r.rosterLocked()
		}
	}

	r.roster = append(r.roster, participant{connID: connID, name: name})
	return r.rosterLocked()
}

// Leave removes the connection from the roster. It reports whether the
// roster changed, so callers can skip broadcasting for rooms the
// connection never joined.
func (r *Room) Leave(connID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.roster {
		if r.roster[i].connID == connID {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			return r.rosterLocked(), true
		}
	}

	return nil, false
}

// SetPlaying drives the lifecycle. play=true starts the session
// (Lobby → Playing); play=false ends it (Playing → Ended, terminal).
// Repeating the current state is a no-op; restarting an ended session is
// rejected.
func (r *Room) SetPlaying(play bool, now time.Time) (domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if play {
		switch r.status {
		case domain.StatusLobby:
			r.status = domain.StatusPlaying
		case domain.StatusPlaying:
			// already started
		case domain.StatusEnded:
			return r.status, ErrEnded
		}
		return r.status, nil
	}

	switch r.status {
	case domain.StatusPlaying:
		r.status = domain.StatusEnded
		r.endedAt = now
	case domain.StatusEnded:
		// already ended
	case domain.StatusLobby:
		return r.status, ErrNotStarted
	}
	return r.status, nil
}

// StartQuestion opens the next question: it advances the question index and
// stamps the server-side answer deadline. Only legal while Playing.
func (r *Room) StartQuestion(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.StatusPlaying {
		return 0, ErrNotPlaying
	}

	r.questionIdx++
	r.deadline = now.Add(r.questionBudget)
	return r.questionIdx, nil
}

// Submit scores an answer against the active question and accumulates the
// points. The returned total is the participant's new accumulated score.
// A second submission for the same question index is rejected, as is any
// submission after the server-side deadline, regardless of the
// client-reported timing.
func (r *Room) Submit(connID string, sub score.Submission, now time.Time) (score.Result, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.StatusPlaying {
		return score.Result{}, decimal.Zero, ErrNotPlaying
	}
	if r.questionIdx == 0 {
		return score.Result{}, decimal.Zero, ErrNoQuestion
	}
	if last, ok := r.lastAnswered[connID]; ok && last == r.questionIdx {
		return score.Result{}, decimal.Zero, ErrAlreadyAnswered
	}
	if now.After(r.deadline) {
		return score.Result{}, decimal.Zero, ErrTimeUp
	}

	r.lastAnswered[connID] = r.questionIdx

	res := score.Evaluate(sub)

	if !res.Correct {
		return res, r.totalLocked(connID), nil
	}

	name := connID
	for _, p := range r.roster {
		if p.connID == connID {
			name = p.name
			break
		}
	}

	i, ok := r.scoreIdx[connID]
	if !ok {
		i = len(r.scores)
		r.scoreIdx[connID] = i
		r.scores = append(r.scores, scoreEntry{connID: connID})
	}
	r.scores[i].name = name
	r.scores[i].total = r.scores[i].total.Add(res.Earned)

	return res, r.scores[i].total, nil
}

// Roster returns the full roster snapshot, in join order.
func (r *Room) Roster() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Scores returns the accumulated scores in first-recorded order. Names are
// resolved against the current roster; disconnected participants keep the
// name captured at their last submission.
func (r *Room) Scores() []ScoreSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make(map[string]string, len(r.roster))
	for _, p := range r.roster {
		names[p.connID] = p.name
	}

	out := make([]ScoreSnapshot, 0, len(r.scores))
	for _, e := range r.scores {
		name := e.name
		if n, ok := names[e.connID]; ok {
			name = n
		}
		out = append(out, ScoreSnapshot{
			ConnID:      e.connID,
			DisplayName: name,
			Total:       e.total,
		})
	}
	return out
}

// EndedAt reports when the room reached Ended, if it has.
func (r *Room) EndedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endedAt, r.status == domain.StatusEnded
}

func (r *Room) totalLocked(connID string) decimal.Decimal {
	if i, ok := r.scoreIdx[connID]; ok {
		return r.scores[i].total
	}
	return decimal.Zero
}

func (r *Room) rosterLocked() []string {
	names := make([]string, 0, len(r.roster))
	for _, p := range r.roster {
		names = append(names, p.name)
	}
	return names
}
