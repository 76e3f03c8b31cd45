package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/quizwire/quizwire/internal/event"
	"github.com/quizwire/quizwire/internal/gateway"
	"github.com/quizwire/quizwire/internal/leaderboard"
	"github.com/quizwire/quizwire/internal/notify"
	"github.com/quizwire/quizwire/internal/room"
	"github.com/quizwire/quizwire/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		// Notify mirrors room broadcasts onto Redis pub/sub. Leaving
		// Addrs empty disables the mirror.
		Notify struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Game struct {
		QuestionsPerSession int
		EndedRoomTTL        time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			notify redis.UniversalClient
		}
	}

	service struct {
		rooms       *room.Registry
		leaderboard *leaderboard.Service
		gateway     *gateway.Gateway
		notifier    *notify.Notifier
	}

	http *http.Server

	janitorCtx  context.Context
	janitorStop context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.janitorCtx, s.janitorStop = context.WithCancel(context.Background())

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if len(s.c.Redis.Notify.Addrs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Notify.Addrs,
		Password: s.c.Redis.Notify.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	s.infra.redis.notify = r
	return nil
}

func (s *Server) initService() {
	s.service.rooms = room.NewRegistry(room.Config{
		QuestionsPerSession: s.c.Game.QuestionsPerSession,
		EndedRoomTTL:        s.c.Game.EndedRoomTTL,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Rooms:    s.service.rooms,
	})

	s.service.gateway = gateway.New(gateway.Config{
		EventBus: s.eb,
		Rooms:    s.service.rooms,
	})

	if s.infra.redis.notify != nil {
		s.service.notifier = notify.New(notify.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis.notify,
			Prefix:   s.c.Redis.Notify.Prefix,
		})
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.service.gateway.Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := s.janitorCtx

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.service.rooms.Run(ctx)
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.janitorStop()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.redis.notify != nil {
		if err := s.infra.redis.notify.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
