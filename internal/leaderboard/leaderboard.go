package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/event"
	"github.com/quizwire/quizwire/internal/room"
)

// Build derives the ranked view from a room's accumulated scores. The input
// is in first-recorded order and the sort is stable, so equal scores keep
// that order.
func Build(scores []room.ScoreSnapshot) []domain.LeaderboardEntry {
	ranked := make([]room.ScoreSnapshot, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, s := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			DisplayName: s.DisplayName,
			Score:       s.Total.InexactFloat64(),
		})
	}
	return entries
}

type Config struct {
	EventBus *event.Bus
	Rooms    room.Store
}

// Service recomputes a room's leaderboard whenever a score changes and
// publishes the result on the event bus.
type Service struct {
	eb    *event.Bus
	rooms room.Store
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		rooms: c.Rooms,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.PublishLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

// GetLeaderboard recomputes the leaderboard for a room on demand. It is
// always a projection of current room state, never stored.
func (s *Service) GetLeaderboard(_ context.Context, code string) (*domain.Leaderboard, error) {
	r, err := s.rooms.Get(code)
	if err != nil {
		return nil, err
	}

	return &domain.Leaderboard{
		RoomCode: code,
		Entries:  Build(r.Scores()),
	}, nil
}

// PublishLeaderboard recomputes after a score change and publishes
// leaderboard.updated for the gateway and notify mirror to fan out.
func (s *Service) PublishLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	l, err := s.GetLeaderboard(ctx, e.Score.RoomCode)
	if err != nil {
		return fmt.Errorf("leaderboard: recompute: room=%s: %w", e.Score.RoomCode, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})
	return nil
}
