// internal/events/types.go
package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/transaction"
)

// EventType represents the type of event.
type EventType string

const (
	// Operation events
	OperationStarted   EventType = "operation.started"
	OperationCompleted EventType = "operation.completed"
	OperationFailed    EventType = "operation.failed"

	// Transaction events
	TxSubmitted EventType = "tx.submitted"
	TxConfirmed EventType = "tx.confirmed"
	TxFailed    EventType = "tx.failed"

	// Dashboard refresh events
	SnapshotUpdated EventType = "snapshot.updated"
	SnapshotFailed  EventType = "snapshot.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// OperationStartedEvent is emitted when a lending action begins.
type OperationStartedEvent struct {
	BaseEvent
	OperationID string
	Operation   domain.Operation
	Account     common.Address
	Amount      *big.Int
}

// OperationCompletedEvent is emitted when every step of an action succeeded.
type OperationCompletedEvent struct {
	BaseEvent
	Outcome domain.Outcome
}

// OperationFailedEvent is emitted when an action stopped with a failure.
type OperationFailedEvent struct {
	BaseEvent
	Outcome domain.Outcome
}

// TxSubmittedEvent is emitted when a node accepted a transaction.
type TxSubmittedEvent struct {
	BaseEvent
	OperationID string
	Operation   domain.Operation
	Step        string
	TxHash      common.Hash
}

// TxConfirmedEvent is emitted when a transaction was mined successfully.
type TxConfirmedEvent struct {
	BaseEvent
	OperationID string
	Operation   domain.Operation
	Result      transaction.Result
}

// TxFailedEvent is emitted when a step failed at any stage.
type TxFailedEvent struct {
	BaseEvent
	OperationID string
	Operation   domain.Operation
	Result      transaction.Result
}

// SnapshotUpdatedEvent carries a fresh dashboard snapshot.
type SnapshotUpdatedEvent struct {
	BaseEvent
	Snapshot domain.Snapshot
}

// SnapshotFailedEvent is emitted when a refresh could not read the chain.
type SnapshotFailedEvent struct {
	BaseEvent
	Err error
}
