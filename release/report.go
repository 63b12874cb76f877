package release

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Report is the record of one executed stage.
type Report struct {
	ID        string       `json:"id" yaml:"id"`
	RunID     string       `json:"runID" yaml:"runID"`
	Def       Definition   `json:"definition" yaml:"definition"`
	Message   string       `json:"message,omitempty" yaml:"message,omitempty"`
	Timestamp *time.Time   `json:"timestamp" yaml:"timestamp"`
	Err       *ReportError `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewReport creates a new report for stage s of run runID.
func NewReport(runID string, s Stage, message string, err error) Report {
	now := time.Now()
	r := Report{
		ID:        uuid.New().String(),
		RunID:     runID,
		Def:       DefinitionOf(s),
		Message:   message,
		Timestamp: &now,
	}
	if err != nil {
		r.Err = &ReportError{Message: err.Error()}
	}

	return r
}

// ReportError represents an error in the Report.
// It carries an exported Message so that it survives marshalling.
type ReportError struct {
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e ReportError) Error() string {
	return e.Message
}

var ErrReportNotFound = errors.New("report not found")

// Reporter manages stage reports.
type Reporter interface {
	GetReport(id string) (Report, error)
	GetReports() ([]Report, error)
	AddReport(report Report) error
}

// MemoryReporter stores reports in memory. It is safe for concurrent use.
type MemoryReporter struct {
	reports []Report
	mu      sync.RWMutex
}

var _ Reporter = (*MemoryReporter)(nil)

// NewMemoryReporter creates a new MemoryReporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

// AddReport adds a report to the memory reporter.
func (e *MemoryReporter) AddReport(report Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reports = append(e.reports, report)

	return nil
}

// GetReports returns all reports.
func (e *MemoryReporter) GetReports() ([]Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reports := make([]Report, len(e.reports))
	copy(reports, e.reports)

	return reports, nil
}

// GetReport returns a report by ID.
// Returns ErrReportNotFound if the report is not found.
func (e *MemoryReporter) GetReport(id string) (Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, report := range e.reports {
		if report.ID == id {
			return report, nil
		}
	}

	return Report{}, fmt.Errorf("report_id %s: %w", id, ErrReportNotFound)
}

// FailedReports returns the reports that carry an error.
func FailedReports(reports []Report) []Report {
	return lo.Filter(reports, func(r Report, _ int) bool {
		return r.Err != nil
	})
}
