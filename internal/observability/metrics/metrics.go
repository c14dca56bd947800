// Package metrics exports game telemetry to Prometheus. It is fed entirely
// from the event bus.
package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/model"
)

type Collector struct {
	registry *prometheus.Registry

	phaseTransitions *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	events           *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	round            prometheus.Gauge
	rainfall         prometheus.Gauge
	playerMoney      *prometheus.GaugeVec
	playerWater      *prometheus.GaugeVec
	gamesStarted     prometheus.Counter

	mu         sync.Mutex
	phaseSince map[string]time.Time
	sub        *events.Subscription
	done       chan struct{}
}

// NewCollector builds the collectors and registers them, together with the
// bus drop counter, on a private registry.
func NewCollector(namespace string, bus *events.Bus) *Collector {
	if namespace == "" {
		namespace = "waterwise"
	}
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		phaseSince: map[string]time.Time{},
	}

	c.phaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phases entered, by phase",
		},
		[]string{"phase"},
	)
	c.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent in each phase",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
		},
		[]string{"phase"},
	)
	c.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Notifications published, by type",
		},
		[]string{"type"},
	)
	c.rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Operations refused with a domain error, by code",
		},
		[]string{"code", "operation"},
	)
	c.round = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "round",
		Help:      "Current round of the running game",
	})
	c.rainfall = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_rainfall",
		Help:      "Rainfall of the last completed round",
	})
	c.playerMoney = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "player",
			Name:      "money",
			Help:      "Money held by each player",
		},
		[]string{"player", "role"},
	)
	c.playerWater = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "player",
			Name:      "water_entitlement",
			Help:      "Water entitlement held by each player",
		},
		[]string{"player", "role"},
	)
	c.gamesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_started_total",
		Help:      "Games started since the process began",
	})

	c.registry.MustRegister(
		c.phaseTransitions,
		c.phaseDuration,
		c.events,
		c.rejections,
		c.round,
		c.rainfall,
		c.playerMoney,
		c.playerWater,
		c.gamesStarted,
	)
	if bus != nil {
		c.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_dropped_total",
				Help:      "Notifications dropped because a subscriber was full",
			},
			func() float64 { return float64(bus.Dropped()) },
		))
	}
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Initialize subscribes to bus and observes events in the background.
func (c *Collector) Initialize(bus *events.Bus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return errors.New("metrics already initialized")
	}
	c.sub = bus.Subscribe(4096)
	c.done = make(chan struct{})
	go func(sub *events.Subscription, done chan struct{}) {
		defer close(done)
		for ev := range sub.C() {
			c.Observe(ev)
		}
	}(c.sub, c.done)
	return nil
}

func (c *Collector) Close() {
	c.mu.Lock()
	sub, done := c.sub, c.done
	c.mu.Unlock()
	if sub == nil {
		return
	}
	sub.Close()
	<-done
}

// Observe updates the collectors from one event.
func (c *Collector) Observe(ev events.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case events.PhaseStarted:
		var p events.PhasePayload
		if ev.Decode(&p) != nil {
			return
		}
		c.phaseTransitions.WithLabelValues(p.Phase).Inc()
		c.round.Set(float64(p.Round))
		if p.Phase == "GameStarting" {
			c.gamesStarted.Inc()
		}
		c.mu.Lock()
		c.phaseSince[p.Phase] = ev.Time
		c.mu.Unlock()

	case events.PhaseEnded:
		var p events.PhasePayload
		if ev.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		since, ok := c.phaseSince[p.Phase]
		delete(c.phaseSince, p.Phase)
		c.mu.Unlock()
		if ok && !ev.Time.Before(since) {
			c.phaseDuration.WithLabelValues(p.Phase).Observe(ev.Time.Sub(since).Seconds())
		}

	case events.OperationRejected:
		var p events.RejectionPayload
		if ev.Decode(&p) != nil {
			return
		}
		c.rejections.WithLabelValues(p.Code, p.Operation).Inc()

	case events.RoundAdvanced:
		var p events.RoundPayload
		if ev.Decode(&p) != nil {
			return
		}
		c.rainfall.Set(float64(p.Rainfall))

	case events.PlayerChanged:
		var p model.PlayerView
		if ev.Decode(&p) != nil || p.ID == model.EconomyID {
			return
		}
		c.playerMoney.WithLabelValues(p.ID, p.Role).Set(float64(p.Money))
		c.playerWater.WithLabelValues(p.ID, p.Role).Set(float64(p.WaterEntitlement))

	case events.GameReset:
		c.playerMoney.Reset()
		c.playerWater.Reset()
		c.round.Set(0)
	}
}
