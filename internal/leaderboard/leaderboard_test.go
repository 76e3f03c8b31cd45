package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/event"
	"github.com/quizwire/quizwire/internal/leaderboard"
	"github.com/quizwire/quizwire/internal/room"
	"github.com/quizwire/quizwire/internal/score"
)

func TestBuild(t *testing.T) {
	tests := map[string]struct {
		scores []room.ScoreSnapshot
		want   []domain.LeaderboardEntry
	}{
		"sorted descending by score": {
			scores: []room.ScoreSnapshot{
				{ConnID: "c1", DisplayName: "Alice", Total: decimal.NewFromInt(50)},
				{ConnID: "c2", DisplayName: "Bob", Total: decimal.NewFromInt(70)},
			},
			want: []domain.LeaderboardEntry{
				{DisplayName: "Bob", Score: 70},
				{DisplayName: "Alice", Score: 50},
			},
		},

		"ties keep first-recorded order": {
			scores: []room.ScoreSnapshot{
				{ConnID: "c1", DisplayName: "Zoe", Total: decimal.NewFromInt(40)},
				{ConnID: "c2", DisplayName: "Alice", Total: decimal.NewFromInt(40)},
				{ConnID: "c3", DisplayName: "Mallory", Total: decimal.NewFromInt(90)},
			},
			want: []domain.LeaderboardEntry{
				{DisplayName: "Mallory", Score: 90},
				{DisplayName: "Zoe", Score: 40},
				{DisplayName: "Alice", Score: 40},
			},
		},

		"no scores yet": {
			scores: nil,
			want:   []domain.LeaderboardEntry{},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := leaderboard.Build(tt.scores)
			require.Equal(t, tt.want, got)

			for i := 1; i < len(got); i++ {
				require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
		})
	}
}

func TestService_PublishLeaderboard(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rooms := room.NewRegistry(room.Config{
		QuestionsPerSession: 1,
		NowFunc:             func() time.Time { return now },
	})

	r, err := rooms.Create("host", 5)
	require.NoError(t, err)

	r.Join("c1", "Alice")
	r.Join("c2", "Bob")
	_, err = r.SetPlaying(true, now)
	require.NoError(t, err)
	_, err = r.StartQuestion(now)
	require.NoError(t, err)

	submit := func(connID string, taken int64) {
		_, _, err := r.Submit(connID, score.Submission{
			Answer:        "B",
			CorrectAnswer: "B",
			TimeTaken:     decimal.NewFromInt(taken),
			TotalTime:     decimal.NewFromInt(10),
		}, now)
		require.NoError(t, err)
	}
	submit("c1", 2) // Alice: 50
	submit("c2", 0) // Bob: 60

	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventLeaderboardUpdated
	)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventLeaderboardUpdated))
		mu.Unlock()
		return nil
	})

	s := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Rooms:    rooms,
	})

	err = s.PublishLeaderboard(context.Background(), domain.EventScoreUpdated{
		Score: domain.Score{RoomCode: r.Code(), ConnID: "c2"},
	})
	require.NoError(t, err)

	eb.Stop()

	require.Len(t, published, 1)
	require.Equal(t, domain.Leaderboard{
		RoomCode: r.Code(),
		Entries: []domain.LeaderboardEntry{
			{DisplayName: "Bob", Score: 60},
			{DisplayName: "Alice", Score: 50},
		},
	}, published[0].Leaderboard)
}

func TestService_GetLeaderboard_RoomNotFound(t *testing.T) {
	t.Parallel()

	s := leaderboard.NewService(leaderboard.Config{
		EventBus: event.NewBus(),
		Rooms:    room.NewRegistry(room.Config{}),
	})

	_, err := s.GetLeaderboard(context.Background(), "NOPE42")
	require.ErrorIs(t, err, room.ErrRoomNotFound)
}
