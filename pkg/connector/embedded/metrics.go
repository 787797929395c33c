package embedded

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var metricSet = metrics.NewSet()

func observe(op string, store string, start time.Time, err error) {
	metricSet.GetOrCreateCounter(fmt.Sprintf(`moviedb_connector_operations_total{op=%q,store=%q}`, op, store)).Inc()
	if err != nil {
		metricSet.GetOrCreateCounter(fmt.Sprintf(`moviedb_connector_errors_total{op=%q,store=%q}`, op, store)).Inc()
	}
	metricSet.GetOrCreateHistogram(fmt.Sprintf(`moviedb_connector_operation_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}

// WriteMetrics writes connector metrics in Prometheus text format.
func WriteMetrics(w io.Writer) {
	metricSet.WritePrometheus(w)
}
