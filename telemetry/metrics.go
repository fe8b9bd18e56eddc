// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesBroadcast prometheus.Counter
	RoomBroadcasts    prometheus.Counter
	RateLimitedHits   prometheus.Counter
	BansIssued        prometheus.Counter
	SlowConsumerDrops prometheus.Counter
	ClaimsAccepted    prometheus.Counter
	ClaimsRejected    prometheus.Counter

	// Histograms (seconds)
	BroadcastDuration prometheus.Observer

	// Gauges
	OnlineGauge      prometheus.Gauge
	ConnectionsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesBroadcast = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_broadcast_total", Help: "Chat messages accepted and broadcast to the room"})
		RoomBroadcasts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_room_broadcasts_total", Help: "Fan-out operations over the room membership"})
		RateLimitedHits = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_rate_limited_total", Help: "Requests rejected by the rate limiter"})
		BansIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_bans_issued_total", Help: "New ban entries recorded (moderation commands and admin endpoint)"})
		SlowConsumerDrops = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_slow_consumer_drops_total", Help: "Connections closed because their outbound queue overflowed"})
		ClaimsAccepted = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_claims_accepted_total", Help: "Identity claims that succeeded"})
		ClaimsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_claims_rejected_total", Help: "Identity claims rejected (banned, conflict, bad credential)"})
		BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_broadcast_duration_seconds", Help: "Room fan-out duration seconds", Buckets: prometheus.DefBuckets})
		OnlineGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_online_users", Help: "Identities currently in the presence set"})
		ConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connections", Help: "Open realtime connections"})
	})
}

// Nil-guarded recording helpers so domain packages can record without caring
// whether Init ran (it does not in unit tests).

// SetOnline records the current presence count.
func SetOnline(n int) {
	if OnlineGauge != nil {
		OnlineGauge.Set(float64(n))
	}
}

// IncConnections tracks an opened realtime connection.
func IncConnections() {
	if ConnectionsGauge != nil {
		ConnectionsGauge.Inc()
	}
}

// DecConnections tracks a closed realtime connection.
func DecConnections() {
	if ConnectionsGauge != nil {
		ConnectionsGauge.Dec()
	}
}

// IncMessages counts an accepted chat message.
func IncMessages() {
	if MessagesBroadcast != nil {
		MessagesBroadcast.Inc()
	}
}

// IncBroadcasts counts a room fan-out.
func IncBroadcasts() {
	if RoomBroadcasts != nil {
		RoomBroadcasts.Inc()
	}
}

// IncRateLimited counts a request rejected by the limiter.
func IncRateLimited() {
	if RateLimitedHits != nil {
		RateLimitedHits.Inc()
	}
}

// IncBans counts a newly recorded ban entry.
func IncBans() {
	if BansIssued != nil {
		BansIssued.Inc()
	}
}

// IncSlowConsumerDrops counts a connection closed on queue overflow.
func IncSlowConsumerDrops() {
	if SlowConsumerDrops != nil {
		SlowConsumerDrops.Inc()
	}
}

// IncClaimAccepted counts a successful identity claim.
func IncClaimAccepted() {
	if ClaimsAccepted != nil {
		ClaimsAccepted.Inc()
	}
}

// IncClaimRejected counts a rejected identity claim.
func IncClaimRejected() {
	if ClaimsRejected != nil {
		ClaimsRejected.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
