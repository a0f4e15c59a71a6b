package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeMetrics instruments one node. Every counter is owned by the
// registry carried on the node configuration, so multiple nodes in
// the same process do not collide.
type NodeMetrics struct {
	// Inbound messages partitioned by topic.
	Inbound *prometheus.CounterVec

	// Messages dropped by the dispatcher, partitioned by reason.
	Dropped *prometheus.CounterVec

	// Transactions the node saw resolve.
	Resolved prometheus.Counter

	// Nonces the local mining workers burned through.
	Hashes prometheus.Counter

	// Current phase as its numeric value.
	Phase prometheus.Gauge
}

func NewNodeMetrics(registry prometheus.Registerer) *NodeMetrics {
	factory := promauto.With(registry)
	return &NodeMetrics{
		Inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powcast",
			Name:      "inbound_messages_total",
			Help:      "Messages delivered by the transport, by topic.",
		}, []string{"topic"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powcast",
			Name:      "dropped_messages_total",
			Help:      "Messages discarded by the dispatcher, by reason.",
		}, []string{"reason"}),
		Resolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "powcast",
			Name:      "transactions_resolved_total",
			Help:      "Transactions observed reaching a winner.",
		}),
		Hashes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "powcast",
			Name:      "hashes_total",
			Help:      "Nonces attempted by the local mining workers.",
		}),
		Phase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "powcast",
			Name:      "phase",
			Help:      "Current node phase, 0 init, 1 election, 2 running.",
		}),
	}
}

// Serve exposes the given registry over HTTP. Runs until the
// listener fails, so callers spawn it on its own goroutine.
func Serve(address string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(address, mux)
}
