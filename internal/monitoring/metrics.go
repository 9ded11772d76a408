package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the hub. Mode label values are "single" and
// "broadcast"; publish status values match the HTTP outcome words.
var (
	// Subscriber lifecycle
	SubscribersActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notir_subscribers_active",
		Help: "Current number of live WebSocket subscribers",
	}, []string{"mode"})

	SubscribersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notir_subscribers_total",
		Help: "Total number of WebSocket subscriptions accepted",
	}, []string{"mode"})

	SubscribeRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notir_subscribe_rejects_total",
		Help: "Subscriptions refused before upgrade, by reason",
	}, []string{"reason"})

	// Publish outcomes
	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notir_publish_total",
		Help: "Publish requests by mode and outcome",
	}, []string{"mode", "status"})

	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notir_send_failures_total",
		Help: "Enqueue attempts that hit a closed queue and triggered a prune",
	})

	// Delivery
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notir_messages_delivered_total",
		Help: "Data frames written to subscriber sockets",
	})

	BytesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notir_bytes_delivered_total",
		Help: "Payload bytes written to subscriber sockets",
	})

	HeartbeatPings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notir_heartbeat_pings_total",
		Help: "Heartbeat ping frames written to subscriber sockets",
	})

	// Ping-pong correlation
	PendingReplies = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notir_pending_replies",
		Help: "Reply slots currently waiting for a subscriber frame",
	})

	ReplyWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notir_reply_wait_seconds",
		Help:    "Ping-pong wait duration by outcome",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"outcome"})

	// Process health, fed by the system monitor
	GoroutinesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notir_goroutines_active",
		Help: "Current number of goroutines",
	})

	MemoryHeapBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notir_memory_heap_bytes",
		Help: "Heap bytes currently allocated",
	})

	MemoryRSSBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notir_memory_rss_bytes",
		Help: "Resident set size of the process",
	})

	CPUUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notir_cpu_usage_percent",
		Help: "System CPU usage percentage",
	})
)

func init() {
	prometheus.MustRegister(SubscribersActive)
	prometheus.MustRegister(SubscribersTotal)
	prometheus.MustRegister(SubscribeRejects)

	prometheus.MustRegister(PublishTotal)
	prometheus.MustRegister(SendFailures)

	prometheus.MustRegister(MessagesDelivered)
	prometheus.MustRegister(BytesDelivered)
	prometheus.MustRegister(HeartbeatPings)

	prometheus.MustRegister(PendingReplies)
	prometheus.MustRegister(ReplyWaitSeconds)

	prometheus.MustRegister(GoroutinesActive)
	prometheus.MustRegister(MemoryHeapBytes)
	prometheus.MustRegister(MemoryRSSBytes)
	prometheus.MustRegister(CPUUsagePercent)
}

// HandleMetrics serves the Prometheus exposition endpoint.
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
