// Package export renders reconciliation reports into downloadable formats.
package export

import (
	"fmt"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// ReportData is the reconciliation snapshot an exporter renders.
type ReportData struct {
	TenantID    string
	Period      string
	GeneratedAt time.Time

	TotalTransactions       int
	UnmatchedTransactions   int
	TotalExpenses           int
	UnmatchedExpenses       int
	AutoReconciliationRate  float64
	TotalReconciliationRate float64
	AverageConfidence       float64

	Matches []*matcher.Match
}

// Report is a rendered reconciliation report ready to be served.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter renders a report in one output format.
type Exporter interface {
	Format() string
	Export(data *ReportData) (*Report, error)
}

// Registry resolves exporters by format name.
type Registry struct {
	exporters map[string]Exporter
}

// NewRegistry creates a registry with the standard CSV and JSON exporters.
func NewRegistry() *Registry {
	r := &Registry{exporters: make(map[string]Exporter)}
	r.Register(&CSVExporter{})
	r.Register(&JSONExporter{})
	return r
}

// Register adds an exporter, replacing any previous one for the format.
func (r *Registry) Register(e Exporter) {
	r.exporters[e.Format()] = e
}

// Get returns the exporter for a format.
func (r *Registry) Get(format string) (Exporter, error) {
	e, ok := r.exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return e, nil
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.exporters))
	for f := range r.exporters {
		formats = append(formats, f)
	}
	return formats
}

func reportFilename(data *ReportData, ext string) string {
	return fmt.Sprintf("reconciliation-%s-%s.%s",
		data.TenantID, data.GeneratedAt.Format("2006-01-02"), ext)
}
