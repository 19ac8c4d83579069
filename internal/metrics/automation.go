package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutomationCollector records automation run outcomes.
type AutomationCollector struct {
	runs           *prometheus.CounterVec
	itemsFetched   prometheus.Counter
	itemsProcessed prometheus.Counter
	itemFailures   prometheus.Counter
	summaries      *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// NewAutomationCollector registers the automation metrics on reg.
func NewAutomationCollector(reg prometheus.Registerer) (*AutomationCollector, error) {
	c := &AutomationCollector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "runs_total",
			Help:      "Automation runs by terminal status.",
		}, []string{"status"}),
		itemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "items_fetched_total",
			Help:      "Raw content rows newly inserted from feeds.",
		}),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "items_processed_total",
			Help:      "Content cards published.",
		}),
		itemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "item_failures_total",
			Help:      "Items skipped because card publication failed.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "summaries_total",
			Help:      "Summaries produced by source (llm or fallback).",
		}, []string{"source"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of automation runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
	}

	for _, col := range []prometheus.Collector{c.runs, c.itemsFetched, c.itemsProcessed, c.itemFailures, c.summaries, c.runDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RunFinished records a terminal run.
func (c *AutomationCollector) RunFinished(status string, fetched, processed int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(status).Inc()
	c.itemsFetched.Add(float64(fetched))
	c.itemsProcessed.Add(float64(processed))
	c.runDuration.Observe(elapsed.Seconds())
}

// ItemFailed counts an item that did not become a card.
func (c *AutomationCollector) ItemFailed() {
	if c == nil {
		return
	}
	c.itemFailures.Inc()
}

// SummaryProduced counts a summary by source.
func (c *AutomationCollector) SummaryProduced(source string) {
	if c == nil {
		return
	}
	c.summaries.WithLabelValues(source).Inc()
}
