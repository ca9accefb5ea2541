// Package memory keeps exported reports in process, for the memory backend
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pocketwise/internal/ports"
)

type Exporter struct {
	mu      sync.Mutex
	reports map[string][]ports.ReportRow
}

var _ ports.ReportExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{reports: make(map[string][]ports.ReportRow)}
}

// ExportTrend replaces the stored report for userID.
func (e *Exporter) ExportTrend(_ context.Context, userID string, rows []ports.ReportRow) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports[userID] = append([]ports.ReportRow(nil), rows...)
	return fmt.Sprintf("memory://reports/%s", userID), nil
}

// Report returns the last export for userID.
func (e *Exporter) Report(userID string) ([]ports.ReportRow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.reports[userID]
	return rows, ok
}
