package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/errors"
	"github.com/quizwire/quizwire/internal/telemetry"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength      = 6
	maxCodeAttempts = 5

	defaultQuestionsPerSession = 9
	defaultEndedRoomTTL        = 5 * time.Minute
)

// Store is the lookup surface the rest of the process depends on. A
// distributed implementation could be substituted here for multi-instance
// deployments without touching the call sites.
type Store interface {
	Create(hostName string, durationMinutes int) (*Room, error)
	Get(code string) (*Room, error)
	Rooms() []*Room
	Remove(code string)
}

type Config struct {
	// QuestionsPerSession splits the configured session duration into
	// per-question answer deadlines.
	QuestionsPerSession int
	// EndedRoomTTL is how long an ended room stays around, so its
	// leaderboard remains viewable before eviction.
	EndedRoomTTL time.Duration
	// NowFunc overrides the clock, for tests.
	NowFunc func() time.Time
}

// Registry owns every open room. It is constructed once at startup and
// passed by reference; there is no package-level room table.
type Registry struct {
	questions int
	ttl       time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(c Config) *Registry {
	if c.QuestionsPerSession <= 0 {
		c.QuestionsPerSession = defaultQuestionsPerSession
	}
	if c.EndedRoomTTL <= 0 {
		c.EndedRoomTTL = defaultEndedRoomTTL
	}
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}

	return &Registry{
		questions: c.QuestionsPerSession,
		ttl:       c.EndedRoomTTL,
		now:       c.NowFunc,
		rooms:     make(map[string]*Room),
	}
}

// Create allocates a room with a fresh unique code in Lobby state. Code
// collisions are retried a bounded number of times.
func (g *Registry) Create(hostName string, durationMinutes int) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := g.rooms[code]; taken {
			continue
		}

		budget := time.Duration(durationMinutes) * time.Minute / time.Duration(g.questions)
		r := newRoom(domain.RoomInfo{
			Code:            code,
			Host:            hostName,
			DurationMinutes: durationMinutes,
			CreateTime:      g.now(),
		}, budget)

		g.rooms[code] = r
		telemetry.RoomsOpen.Inc()
		return r, nil
	}

	return nil, errors.New(errors.CodeInternal,
		errors.WithMessagef("could not allocate a unique room code after %d attempts", maxCodeAttempts))
}

func (g *Registry) Get(code string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Rooms returns a snapshot of every open room. Disconnect handling scans
// this list, since membership is not indexed by connection.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

func (g *Registry) Remove(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[code]; ok {
		delete(g.rooms, code)
		telemetry.RoomsOpen.Dec()
	}
}

// Evict removes rooms that ended more than the TTL ago and returns their
// codes.
func (g *Registry) Evict(now time.Time) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var evicted []string
	for code, r := range g.rooms {
		endedAt, ended := r.EndedAt()
		if ended && now.Sub(endedAt) > g.ttl {
			delete(g.rooms, code)
			telemetry.RoomsOpen.Dec()
			evicted = append(evicted, code)
		}
	}
	return evicted
}

// Run sweeps ended rooms until ctx is canceled.
func (g *Registry) Run(ctx context.Context) {
	t := time.NewTicker(g.ttl / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if evicted := g.Evict(g.now()); len(evicted) > 0 {
				slog.InfoContext(ctx, "room: evicted ended rooms", "codes", evicted)
			}
		}
	}
}

func generateCode() (string, error) {
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
