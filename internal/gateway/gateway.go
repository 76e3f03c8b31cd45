package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/quizwire/quizwire/internal/domain"
	"github.com/quizwire/quizwire/internal/errors"
	"github.com/quizwire/quizwire/internal/event"
	"github.com/quizwire/quizwire/internal/room"
	"github.com/quizwire/quizwire/internal/score"
	"github.com/quizwire/quizwire/internal/telemetry"
)

// ack payloads; field names are part of the wire contract.
type (
	ackError struct {
		Error string `json:"error"`
	}

	ackSuccess struct {
		Success bool `json:"success"`
	}

	ackStatus struct {
		Status string `json:"status"`
	}

	ackRoomCode struct {
		RoomCode string `json:"roomCode"`
	}

	ackSubmit struct {
		Correct      bool    `json:"correct"`
		EarnedPoints float64 `json:"earnedPoints"`
		TotalScore   float64 `json:"totalScore"`
	}
)

type Config struct {
	EventBus *event.Bus
	Rooms    room.Store
	// NowFunc overrides the clock, for tests.
	NowFunc func() time.Time
}

// Gateway translates inbound realtime commands into room operations and
// fans resulting state snapshots out to every connection subscribed to a
// room. Participant and host channels are separate endpoints; roster,
// leaderboard and status broadcasts mirror to both.
type Gateway struct {
	eb    *event.Bus
	rooms room.Store
	now   func() time.Time

	mu           sync.RWMutex
	participants map[string]map[*client]struct{}
	hosts        map[string]map[*client]struct{}
}

func New(c Config) *Gateway {
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}

	g := &Gateway{
		eb:           c.EventBus,
		rooms:        c.Rooms,
		now:          c.NowFunc,
		participants: make(map[string]map[*client]struct{}),
		hosts:        make(map[string]map[*client]struct{}),
	}

	g.eb.Subscribe(domain.EventNameRosterUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventRosterUpdated)
		g.broadcast(ev.RoomCode, evtRosterUpdate, ev.Roster, true)
		return nil
	})

	g.eb.Subscribe(domain.EventNameStatusChanged, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventStatusChanged)
		g.broadcast(ev.RoomCode, evtSessionStarted, ev.Status == domain.StatusPlaying, true)
		return nil
	})

	g.eb.Subscribe(domain.EventNameQuestionSent, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventQuestionSent)
		g.broadcast(ev.RoomCode, evtSessionDuration, ev.DurationMinutes, false)
		g.broadcast(ev.RoomCode, evtQuestionBroadcast, ev.Question, false)
		return nil
	})

	g.eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventLeaderboardUpdated)
		g.broadcast(ev.Leaderboard.RoomCode, evtLeaderboardUpdate, ev.Leaderboard.Entries, true)
		return nil
	})

	return g
}

// Register mounts the realtime endpoints.
func (g *Gateway) Register(e *gin.Engine) {
	e.GET("/ws", g.handleParticipant)
	e.GET("/ws/host", g.handleHost)
}

// The realtime channel itself is unauthenticated; identity is the
// connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (g *Gateway) handleParticipant(c *gin.Context) { g.serve(c, false) }

func (g *Gateway) handleHost(c *gin.Context) { g.serve(c, true) }

func (g *Gateway) serve(c *gin.Context, host bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "gateway: upgrade failed", "error", err)
		return
	}

	cl := newClient(conn, host)
	go cl.writePump()
	g.readPump(c.Request.Context(), cl)
}

func (g *Gateway) readPump(ctx context.Context, cl *client) {
	defer func() {
		g.disconnect(ctx, cl)
		cl.close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.InfoContext(ctx, "gateway: connection closed", "conn", cl.id, "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.ackError(cl, "", errInvalidRequest)
			continue
		}

		g.dispatch(ctx, cl, env)
	}
}

func (g *Gateway) dispatch(ctx context.Context, cl *client, env envelope) {
	cmd, err := parseCommand(env, cl.host)
	if err != nil {
		g.ackError(cl, env.Event, err)
		return
	}

	switch c := cmd.(type) {
	case joinCmd:
		g.handleJoin(ctx, cl, c)
	case submitAnswerCmd:
		g.handleSubmitAnswer(ctx, cl, c)
	case createRoomCmd:
		g.handleCreateRoom(ctx, cl, c)
	case setPlayingCmd:
		g.handleSetPlaying(ctx, cl, c)
	case sendQuestionCmd:
		g.handleSendQuestion(ctx, cl, c)
	case leaveCmd:
		g.handleLeave(ctx, c)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, cl *client, c joinCmd) {
	r, err := g.rooms.Get(c.RoomCode)
	if err != nil {
		g.ackError(cl, cmdJoin, err)
		return
	}

	// Subscribe before the roster snapshot is published, so the joining
	// connection receives its own update.
	g.subscribe(c.RoomCode, cl)
	roster := r.Join(cl.id, c.DisplayName)

	g.ack(cl, cmdJoin, ackSuccess{Success: true})
	g.sendTo(cl, evtSessionDuration, r.Info().DurationMinutes)

	g.eb.Publish(ctx, domain.EventRosterUpdated{
		RoomCode: c.RoomCode,
		Roster:   roster,
	})
}

func (g *Gateway) handleSubmitAnswer(ctx context.Context, cl *client, c submitAnswerCmd) {
	r, err := g.rooms.Get(c.RoomCode)
	if err != nil {
		g.ackError(cl, cmdSubmitAnswer, err)
		return
	}

	now := g.now()
	res, total, err := r.Submit(cl.id, score.Submission{
		Answer:        c.Answer,
		CorrectAnswer: c.CorrectAnswer,
		TimeTaken:     decimal.NewFromFloat(*c.TimeTaken),
		TotalTime:     decimal.NewFromFloat(*c.TotalTime),
	}, now)
	if err != nil {
		g.ackError(cl, cmdSubmitAnswer, err)
		return
	}

	g.ack(cl, cmdSubmitAnswer, ackSubmit{
		Correct:      res.Correct,
		EarnedPoints: res.Earned.InexactFloat64(),
		TotalScore:   total.InexactFloat64(),
	})

	g.eb.Publish(ctx, domain.EventScoreUpdated{Score: domain.Score{
		RoomCode:   c.RoomCode,
		ConnID:     cl.id,
		Total:      total,
		UpdateTime: now,
	}})
}

func (g *Gateway) handleCreateRoom(ctx context.Context, cl *client, c createRoomCmd) {
	r, err := g.rooms.Create(c.HostName, c.DurationMinutes)
	if err != nil {
		g.ackError(cl, cmdCreateRoom, err)
		return
	}

	// The creating connection drives this room from here on.
	g.subscribe(r.Code(), cl)

	g.ack(cl, cmdCreateRoom, ackRoomCode{RoomCode: r.Code()})
	g.sendTo(cl, evtSessionDuration, r.Info().DurationMinutes)

	slog.InfoContext(ctx, "gateway: room created",
		"code", r.Code(),
		"host", c.HostName,
		"duration_minutes", c.DurationMinutes,
	)

	g.eb.Publish(ctx, domain.EventRoomCreated{Room: r.Info()})
}

func (g *Gateway) handleSetPlaying(ctx context.Context, cl *client, c setPlayingCmd) {
	r, err := g.rooms.Get(c.RoomCode)
	if err != nil {
		g.ackError(cl, cmdSetPlaying, err)
		return
	}

	status, err := r.SetPlaying(*c.Play, g.now())
	if err != nil {
		g.ackError(cl, cmdSetPlaying, err)
		return
	}

	g.ack(cl, cmdSetPlaying, ackStatus{Status: "ok"})

	g.eb.Publish(ctx, domain.EventStatusChanged{
		RoomCode: c.RoomCode,
		Status:   status,
	})
}

func (g *Gateway) handleSendQuestion(ctx context.Context, cl *client, c sendQuestionCmd) {
	r, err := g.rooms.Get(c.RoomCode)
	if err != nil {
		g.ackError(cl, cmdSendQuestion, err)
		return
	}

	if _, err := r.StartQuestion(g.now()); err != nil {
		g.ackError(cl, cmdSendQuestion, err)
		return
	}

	g.ack(cl, cmdSendQuestion, ackStatus{Status: "sent"})

	var question any
	if err := json.Unmarshal(c.Question, &question); err != nil {
		// parseCommand already verified the payload is valid JSON
		return
	}

	g.eb.Publish(ctx, domain.EventQuestionSent{
		RoomCode:        c.RoomCode,
		Question:        question,
		DurationMinutes: r.Info().DurationMinutes,
	})
}

// handleLeave removes the connection from every room it appears in and
// re-broadcasts the affected rosters. Membership is not indexed by
// connection, so every open room is scanned.
func (g *Gateway) handleLeave(ctx context.Context, c leaveCmd) {
	for _, r := range g.rooms.Rooms() {
		if roster, changed := r.Leave(c.connID); changed {
			g.eb.Publish(ctx, domain.EventRosterUpdated{
				RoomCode: r.Code(),
				Roster:   roster,
			})
		}
	}
}

func (g *Gateway) disconnect(ctx context.Context, cl *client) {
	g.unsubscribeAll(cl)

	// Hosts are never roster members, so there is nothing to scan for.
	if cl.host {
		return
	}

	g.handleLeave(ctx, leaveCmd{connID: cl.id})
}

func (g *Gateway) subscribe(code string, cl *client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := g.participants
	if cl.host {
		m = g.hosts
	}

	set, ok := m[code]
	if !ok {
		set = make(map[*client]struct{})
		m[code] = set
	}
	set[cl] = struct{}{}
}

func (g *Gateway) unsubscribeAll(cl *client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for code, set := range g.participants {
		delete(set, cl)
		if len(set) == 0 {
			delete(g.participants, code)
		}
	}
	for code, set := range g.hosts {
		delete(set, cl)
		if len(set) == 0 {
			delete(g.hosts, code)
		}
	}
}

// broadcast fans a full state snapshot out to every connection subscribed
// to the room. Hosts mirror the broadcast unless participantsOnly is set.
// There is no redelivery: a connection that misses a broadcast catches up
// on the next snapshot.
func (g *Gateway) broadcast(code, eventName string, data any, mirrorToHost bool) {
	b, err := json.Marshal(frame{Event: eventName, Data: data})
	if err != nil {
		slog.Error("gateway: marshal broadcast failed", "event", eventName, "error", err)
		return
	}

	g.mu.RLock()
	targets := make([]*client, 0, len(g.participants[code])+len(g.hosts[code]))
	for cl := range g.participants[code] {
		targets = append(targets, cl)
	}
	if mirrorToHost {
		for cl := range g.hosts[code] {
			targets = append(targets, cl)
		}
	}
	g.mu.RUnlock()

	for _, cl := range targets {
		if !cl.enqueue(b) {
			cl.close()
		}
	}

	telemetry.BroadcastsTotal.WithLabelValues(eventName).Add(float64(len(targets)))
}

func (g *Gateway) ack(cl *client, forEvent string, data any) {
	telemetry.CommandsTotal.WithLabelValues(forEvent, "ok").Inc()
	g.write(cl, frame{Event: evtAck, For: forEvent, Data: data})
}

func (g *Gateway) ackError(cl *client, forEvent string, err error) {
	telemetry.CommandsTotal.WithLabelValues(forEvent, "error").Inc()
	g.write(cl, frame{Event: evtAck, For: forEvent, Data: ackError{Error: errors.Convert(err).Message}})
}

func (g *Gateway) sendTo(cl *client, eventName string, data any) {
	g.write(cl, frame{Event: eventName, Data: data})
}

func (g *Gateway) write(cl *client, f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		slog.Error("gateway: marshal frame failed", "event", f.Event, "error", err)
		return
	}

	if !cl.enqueue(b) {
		cl.close()
	}
}
