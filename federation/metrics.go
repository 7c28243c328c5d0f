package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("chartreuse.federation")

var (
	// inboxActivities counts inbox requests by activity type and outcome
	inboxActivities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartreuse_inbox_activities_total",
		Help: "Inbox activities by type and result",
	}, []string{"type", "result"})

	// deliveriesTotal counts outbound deliveries by activity type and outcome
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartreuse_deliveries_total",
		Help: "Outbound inbox deliveries by type and result",
	}, []string{"type", "result"})

	deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chartreuse_delivery_duration_seconds",
		Help:    "Duration of a single outbound inbox delivery",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	dispatchTargets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chartreuse_dispatch_targets",
		Help:    "Number of (node, author) targets per dispatch",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch StatusFor(err) {
	case 400:
		return "bad_request"
	case 401:
		return "unauthorized"
	case 404:
		return "not_found"
	case 502:
		return "transport"
	}
	return "error"
}
