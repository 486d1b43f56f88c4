package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact module. Tracks write
// volumes, import outcomes, and the latency of the list/search path.
type Metrics struct {
	ContactsCreated prometheus.Counter
	ContactsDeleted prometheus.Counter
	RowsImported    prometheus.Counter
	RowsIgnored     prometheus.Counter
	ListDuration    prometheus.Histogram
	ImportDuration  prometheus.Histogram
}

// New creates a Metrics instance with all contact module metrics registered.
func New() *Metrics {
	return &Metrics{
		ContactsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carnet_contacts_created_total",
			Help: "Total number of contacts created (including CSV imports)",
		}),
		ContactsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carnet_contacts_deleted_total",
			Help: "Total number of contacts deleted",
		}),
		RowsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carnet_import_rows_imported_total",
			Help: "CSV rows accepted and inserted by the import reconciler",
		}),
		RowsIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carnet_import_rows_ignored_total",
			Help: "CSV rows rejected as invalid or duplicate",
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carnet_list_duration_seconds",
			Help:    "Duration of list/search operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carnet_import_duration_seconds",
			Help:    "Duration of CSV import operations",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
}

// ObserveList records the duration of a list or search operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}

// ObserveImport records the duration of a CSV import.
func (m *Metrics) ObserveImport(start time.Time) {
	m.ImportDuration.Observe(time.Since(start).Seconds())
}
