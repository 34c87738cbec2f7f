package operation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// Kind identifies the business operation type
type Kind string

const (
	KindReceipt     Kind = "RECEIPT"
	KindTransfer    Kind = "TRANSFER"
	KindConsumption Kind = "CONSUMPTION"
)

// ParseKind validates a kind string coming from the API surface
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReceipt, KindTransfer, KindConsumption:
		return Kind(s), nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown operation kind: "+s)
}

// SyncState is the state of the external-sync sub-document
type SyncState string

const (
	SyncStateUnsynced SyncState = "UNSYNCED"
	SyncStateSyncing  SyncState = "SYNCING"
	SyncStateSynced   SyncState = "SYNCED"
	SyncStateFailed   SyncState = "FAILED"
)

// MaxSyncRetries caps automatic re-posting of a failed operation.
// Beyond the cap, retries are refused until the counter is cleared manually.
const MaxSyncRetries = 5

// Sync-state transition errors, surfaced verbatim to callers
var (
	ErrSyncInProgress    = shared.NewDomainError("SYNC_IN_PROGRESS", "external sync retry already in progress")
	ErrAlreadySynced     = shared.NewDomainError("ALREADY_SYNCED", "operation is already synced with the external system")
	ErrRetryLimitReached = shared.NewDomainError("RETRY_LIMIT_REACHED", "external sync retry limit reached; clear the retry counter to continue")
)

// ExternalSync tracks whether and how an operation was posted to the ERP
type ExternalSync struct {
	Pushed         bool
	ExternalID     string
	ExternalNumber string
	Error          string
	RetryCount     int
	State          SyncState
}

// Line is one product movement within an operation
type Line struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	BatchNumber string
	Quantity    decimal.Decimal
	ExpiryDate  *time.Time
}

// Operation is the record of one business movement (receipt, transfer or
// consumption delivery). The ledger mutation and the operation record are
// committed in the same transaction; the external-sync sub-document records
// the ERP side of the dual write.
type Operation struct {
	shared.BaseAggregateRoot
	Kind                  Kind
	SourceLocationID      *uuid.UUID
	DestinationLocationID *uuid.UUID
	Lines                 []Line
	Actor                 string
	Reference             string
	// ExternallySourced marks operations replayed from an ERP document
	// discovered by reconciliation; they are born SYNCED and never posted.
	ExternallySourced bool
	OccurredAt        time.Time
	Sync              ExternalSync
}

// New creates an operation pending external sync
func New(kind Kind, actor string, lines []Line) (*Operation, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "operation requires at least one line")
	}
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		if !lines[i].Quantity.IsPositive() {
			return nil, shared.NewDomainError("INVALID_INPUT", "line quantity must be positive")
		}
	}
	return &Operation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		Actor:             actor,
		Lines:             lines,
		OccurredAt:        time.Now(),
		Sync:              ExternalSync{State: SyncStateUnsynced},
	}, nil
}

// NewExternallySourced creates an operation replaying an ERP document.
// It carries the ERP identifiers and is never posted again.
func NewExternallySourced(kind Kind, actor string, lines []Line, externalID, externalNumber string) (*Operation, error) {
	op, err := New(kind, actor, lines)
	if err != nil {
		return nil, err
	}
	op.ExternallySourced = true
	op.Sync = ExternalSync{
		Pushed:         true,
		ExternalID:     externalID,
		ExternalNumber: externalNumber,
		State:          SyncStateSynced,
	}
	return op, nil
}

// BeginSync claims the operation for an external posting attempt and counts
// the claim against the retry budget, so the cap bounds posting attempts
// rather than recorded failures.
// Only UNSYNCED or FAILED operations can be claimed; the repository enforces
// the same transition conditionally so exactly one concurrent claimant wins.
func (o *Operation) BeginSync() error {
	switch o.Sync.State {
	case SyncStateSyncing:
		return ErrSyncInProgress
	case SyncStateSynced:
		return ErrAlreadySynced
	}
	if o.Sync.RetryCount >= MaxSyncRetries {
		return ErrRetryLimitReached
	}
	o.Sync.RetryCount++
	o.Sync.State = SyncStateSyncing
	o.Touch()
	return nil
}

// CompleteSync records a successful external posting
func (o *Operation) CompleteSync(externalID, externalNumber string) {
	o.Sync.Pushed = true
	o.Sync.ExternalID = externalID
	o.Sync.ExternalNumber = externalNumber
	o.Sync.Error = ""
	o.Sync.State = SyncStateSynced
	o.Touch()
}

// FailSync records a failed external posting. The attempt was already
// counted when it was claimed.
func (o *Operation) FailSync(message string) {
	o.Sync.Error = message
	o.Sync.State = SyncStateFailed
	o.Touch()
}

// ClearRetries resets the retry counter so a capped operation can be retried
func (o *Operation) ClearRetries() {
	o.Sync.RetryCount = 0
	o.Touch()
}
