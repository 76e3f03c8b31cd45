package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/event"
	"github.com/quizwire/quizwire/internal/notify"
)

func TestNotifier_MirrorsBroadcasts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	sub := rc.Subscribe(ctx, "local:room:R1")
	t.Cleanup(func() { sub.Close() })

	_, err := sub.Receive(ctx) // wait until the subscription is live
	require.NoError(t, err)

	eb := event.NewBus()
	notify.New(notify.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "local",
	})

	eb.Publish(ctx, domain.EventRosterUpdated{
		RoomCode: "R1",
		Roster:   []string{"Alice"},
	})

	eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: domain.Leaderboard{
		RoomCode: "R1",
		Entries: []domain.LeaderboardEntry{
			{DisplayName: "Bob", Score: 70},
			{DisplayName: "Alice", Score: 50},
		},
	}})

	eb.Stop()

	// handlers run concurrently, so delivery order between the two
	// notifications is not fixed
	byEvent := make(map[string]string)
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)

		var n struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		byEvent[n.Event] = msg.Payload
	}

	require.JSONEq(t, `{"event":"rosterUpdate","data":["Alice"]}`, byEvent["rosterUpdate"])
	require.JSONEq(t, `{
		"event": "leaderboardUpdate",
		"data": [
			{"displayName":"Bob","score":70},
			{"displayName":"Alice","score":50}
		]
	}`, byEvent["leaderboardUpdate"])
}

func TestNotifier_OnlyMirrorsItsOwnRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	sub := rc.Subscribe(ctx, "local:room:OTHER")
	t.Cleanup(func() { sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	eb := event.NewBus()
	notify.New(notify.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "local",
	})

	eb.Publish(ctx, domain.EventStatusChanged{
		RoomCode: "R1",
		Status:   domain.StatusPlaying,
	})
	eb.Stop()

	short, cancelShort := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancelShort()

	_, err = sub.ReceiveMessage(short)
	require.Error(t, err, "a broadcast for another room must not arrive")
}
