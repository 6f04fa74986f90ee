package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "counter_dashboard"

var Registry = prometheus.NewRegistry()

var (
	CountUpdates = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "count_updates_total",
		Help:      "Product count pushes delivered to dashboard widgets.",
	})
	ThresholdWarnings = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threshold_warnings_total",
		Help:      "Limit reached notices shown.",
	})
	SubscriptionErrors = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_errors_total",
		Help:      "Failed reads of the product count.",
	})
	ResetCommands = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_commands_total",
		Help:      "Reset commands written, by result.",
	}, []string{"result"})
	MountedWidgets = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mounted_widgets",
		Help:      "Counter widgets currently subscribed.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ResetResult labels a reset outcome.
func ResetResult(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
