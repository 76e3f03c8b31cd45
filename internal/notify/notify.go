// Package notify mirrors room broadcasts onto Redis pub/sub, so external
// observers (dashboards, ops tooling) can follow a live room without
// holding a websocket. Room state in process memory stays authoritative.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/event"
)

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Config struct {
	EventBus *event.Bus
	Redis    Redis
	Prefix   string
}

// Notification is the envelope published per broadcast, one channel per
// room.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Notifier struct {
	redis  Redis
	prefix string
}

func New(c Config) *Notifier {
	n := &Notifier{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(domain.EventNameRoomCreated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventRoomCreated)
		return n.publish(ctx, ev.Room.Code, "roomCreated", map[string]any{
			"roomCode":        ev.Room.Code,
			"hostName":        ev.Room.Host,
			"durationMinutes": ev.Room.DurationMinutes,
		})
	})

	c.EventBus.Subscribe(domain.EventNameRosterUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventRosterUpdated)
		return n.publish(ctx, ev.RoomCode, "rosterUpdate", ev.Roster)
	})

	c.EventBus.Subscribe(domain.EventNameStatusChanged, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventStatusChanged)
		return n.publish(ctx, ev.RoomCode, "sessionStarted", ev.Status == domain.StatusPlaying)
	})

	c.EventBus.Subscribe(domain.EventNameQuestionSent, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventQuestionSent)
		return n.publish(ctx, ev.RoomCode, "questionBroadcast", ev.Question)
	})

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventLeaderboardUpdated)
		return n.publish(ctx, ev.Leaderboard.RoomCode, "leaderboardUpdate", ev.Leaderboard.Entries)
	})

	return n
}

func (n *Notifier) publish(ctx context.Context, code, eventName string, data any) error {
	b, err := json.Marshal(Notification{
		Event: eventName,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", eventName, err)
	}

	return n.redis.Publish(ctx, n.channel(code), b).Err()
}

func (n *Notifier) channel(code string) string {
	return fmt.Sprintf("%s:room:%s", n.prefix, code)
}
