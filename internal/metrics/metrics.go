// Package metrics collects batch outcomes in a private Prometheus registry
// and writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"titlevault/internal/importer"
	"titlevault/internal/maintenance"
)

const namespace = "titlevault"

// Recorder holds the collectors for one command invocation.
type Recorder struct {
	registry *prometheus.Registry

	rows           *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	importDuration *prometheus.GaugeVec
	passStatus     *prometheus.GaugeVec
	passRepaired   *prometheus.GaugeVec
	passUnresolved *prometheus.GaugeVec
	records        prometheus.Gauge
	lastRun        *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows reconciled by import, by source kind and outcome.",
		}, []string{"kind", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rejections_total",
			Help:      "Rejected rows by reason.",
		}, []string{"reason"}),
		importDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Wall time of the last import, by source kind.",
		}, []string{"kind"}),
		passStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "pass_status",
			Help:      "1 for the status each maintenance pass ended with.",
		}, []string{"pass", "status"}),
		passRepaired: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "repaired_records",
			Help:      "Records repaired by the last maintenance run, by pass.",
		}, []string{"pass"}),
		passUnresolved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "unresolved_entries",
			Help:      "Entries reported by the last maintenance run, by pass.",
		}, []string{"pass"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_records",
			Help:      "Records in the catalog after the command finished.",
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the command last finished, by command.",
		}, []string{"command"}),
	}
	r.registry.MustRegister(
		r.rows, r.rejections, r.importDuration,
		r.passStatus, r.passRepaired, r.passUnresolved,
		r.records, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveImport records the tallies of one import batch.
func (r *Recorder) ObserveImport(kind string, res importer.Result) {
	r.rows.WithLabelValues(kind, "inserted").Add(float64(res.Inserted))
	r.rows.WithLabelValues(kind, "updated").Add(float64(res.Updated))
	r.rows.WithLabelValues(kind, "unchanged").Add(float64(res.Unchanged))
	r.rows.WithLabelValues(kind, "rejected").Add(float64(res.Rejected))
	r.rows.WithLabelValues(kind, "skipped").Add(float64(res.Skipped))
	for reason, n := range res.Reasons {
		r.rejections.WithLabelValues(reason).Add(float64(n))
	}
	r.importDuration.WithLabelValues(kind).Set(res.Duration.Seconds())
}

// ObserveMaintenance records the outcome of every pass.
func (r *Recorder) ObserveMaintenance(reports []maintenance.PassReport) {
	for _, rep := range reports {
		r.passStatus.WithLabelValues(rep.Name, string(rep.Status)).Set(1)
		r.passRepaired.WithLabelValues(rep.Name).Set(float64(rep.Repaired))
		r.passUnresolved.WithLabelValues(rep.Name).Set(float64(len(rep.Unresolved)))
	}
}

// SetCatalogSize records the number of catalog records.
func (r *Recorder) SetCatalogSize(n int) {
	r.records.Set(float64(n))
}

// MarkRun stamps the finish time of command.
func (r *Recorder) MarkRun(command string, at time.Time) {
	r.lastRun.WithLabelValues(command).Set(float64(at.Unix()))
}

// WriteTextfile atomically writes every metric to path. An empty path is a
// no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
