package reconcile

import (
	"time"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// RunStatus tracks the lifecycle of a reconciliation scan
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// TypeCounts accumulates per-document-type scan results
type TypeCounts struct {
	Fetched  int
	Created  int
	Existing int
}

// RunError records a document that could not be reconciled during a scan.
// A run with errors still completes; the failures are reported, not fatal.
type RunError struct {
	DocType    DocType
	ExternalID string
	Message    string
}

// Run is the persisted record of one reconciliation scan
type Run struct {
	shared.BaseEntity
	WindowFrom  time.Time
	WindowTo    time.Time
	Status      RunStatus
	Counts      map[DocType]*TypeCounts
	Errors      []RunError
	FailureNote string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// NewRun starts a scan record for the given discovery window
func NewRun(from, to time.Time) (*Run, error) {
	if !to.After(from) {
		return nil, shared.NewDomainError("INVALID_INPUT", "scan window end must be after its start")
	}
	return &Run{
		BaseEntity: shared.NewBaseEntity(),
		WindowFrom: from,
		WindowTo:   to,
		Status:     RunStatusRunning,
		Counts:     make(map[DocType]*TypeCounts),
		StartedAt:  time.Now(),
	}, nil
}

func (r *Run) counts(docType DocType) *TypeCounts {
	c, ok := r.Counts[docType]
	if !ok {
		c = &TypeCounts{}
		r.Counts[docType] = c
	}
	return c
}

// RecordFetched notes how many documents of a type the ERP returned
func (r *Run) RecordFetched(docType DocType, n int) {
	r.counts(docType).Fetched += n
}

// RecordCreated notes a document seen for the first time this run
func (r *Run) RecordCreated(docType DocType) {
	r.counts(docType).Created++
}

// RecordExisting notes a document the scan had already discovered before
func (r *Run) RecordExisting(docType DocType) {
	r.counts(docType).Existing++
}

// RecordError notes a document that failed to persist during the scan
func (r *Run) RecordError(docType DocType, externalID, message string) {
	r.Errors = append(r.Errors, RunError{DocType: docType, ExternalID: externalID, Message: message})
}

// Complete finishes the run; per-document errors do not prevent completion
func (r *Run) Complete() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
	r.Touch()
}

// Fail aborts the run with a terminal failure, e.g. the ERP was unreachable
func (r *Run) Fail(note string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FailureNote = note
	r.FinishedAt = &now
	r.Touch()
}

// TotalCreated sums newly discovered documents across all types
func (r *Run) TotalCreated() int {
	total := 0
	for _, c := range r.Counts {
		total += c.Created
	}
	return total
}
