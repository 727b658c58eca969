package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	redemptionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_requests_total",
			Help: "Redemption submissions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	localRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_local_rejections_total",
			Help: "Locally rejected redemption requests by reason",
		},
		[]string{"reason"},
	)

	inflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redemption_inflight_requests",
			Help: "Redemption requests currently awaiting an upstream reply",
		},
	)

	ledgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticket_ledger_cached_users",
			Help: "Users with a cached consignment ticket balance",
		},
	)

	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redemption_upstream_call_seconds",
			Help:    "Duration of calls to the external redemption APIs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"api"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(ctx context.Context, redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics(ctx)

	return monitor
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectRedisMetrics(ctx)
		}
	}
}

func (m *Monitor) collectRedisMetrics(ctx context.Context) {
	inflightKeys, _ := m.redis.Keys(ctx, "redemption:inflight:*").Result()
	inflightRequests.Set(float64(len(inflightKeys)))

	balanceKeys, _ := m.redis.Keys(ctx, "tickets:balance:*").Result()
	ledgerEntries.Set(float64(len(balanceKeys)))
}

// TrackRedemption records one submission outcome. Safe on a nil Monitor.
func (m *Monitor) TrackRedemption(action, outcome string) {
	redemptionRequests.WithLabelValues(action, outcome).Inc()
}

// TrackLocalRejection records a client-side rejection reason.
func (m *Monitor) TrackLocalRejection(reason string) {
	localRejections.WithLabelValues(reason).Inc()
}

// ObserveUpstreamCall records the latency of one external API call.
func (m *Monitor) ObserveUpstreamCall(api string, duration time.Duration) {
	upstreamCallDuration.WithLabelValues(api).Observe(duration.Seconds())
}
