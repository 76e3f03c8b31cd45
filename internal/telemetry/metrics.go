package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizwire_rooms_open",
		Help: "Number of currently open rooms.",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizwire_commands_total",
		Help: "Inbound realtime commands, by event and outcome.",
	}, []string{"event", "outcome"})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizwire_broadcasts_total",
		Help: "Messages fanned out to subscribed connections, by event.",
	}, []string{"event"})
)
