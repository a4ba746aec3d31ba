// Package db defines the abstract, append-capable storage collaborator a
// Processor depends on (spec.md §6): finalized KEL rows per identifier,
// receipts, and escrows. It is deliberately small and interface-first, in
// the style of massifs/storageinterface.go — concrete backends live in
// db/memory and db/azureblob.
package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/prefix"
)

// TimestampedSignedEventMessage pairs a finalized signed event with the
// order it was appended in. Ordinal, not wall-clock time, establishes
// read order: Database.GetKELFinalizedEvents rows sort by Ordinal, which a
// correctly behaving backend assigns in append order. Ordinal need not
// equal `sn`: db/memory does not reuse the ordinal of a row that was
// appended and then removed again.
type TimestampedSignedEventMessage struct {
	Ordinal            uint64
	SignedEventMessage eventmessage.SignedEventMessage
}

// EscrowedNontransferableReceipt and EscrowedTransferableReceipt carry a
// correlation ID so a surrounding scheduler can address a specific escrow
// row when re-driving it later. Eviction policy for these tables is an
// explicit non-decision of this package (spec.md §9 Open Question) — left
// to that scheduler.
type EscrowedNontransferableReceipt struct {
	ID      uuid.UUID
	Receipt eventmessage.SignedNontransferableReceipt
}

type EscrowedTransferableReceipt struct {
	ID      uuid.UUID
	Receipt eventmessage.SignedTransferableReceipt
}

// Database is the storage interface spec.md §6 specifies. Every method
// takes the identifier prefix its row belongs to, since every query in
// this package (and in Processor) is scoped to one identifier's KEL.
// Implementations must serve concurrent calls for distinct prefixes safely;
// Processor itself is responsible for serializing calls that share a
// prefix (spec.md §5).
type Database interface {
	// AddKELFinalizedEvent appends signed to id's finalized KEL.
	AddKELFinalizedEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error
	// RemoveKELFinalizedEvent removes the row exactly matching signed's
	// canonical bytes from id's finalized KEL (Processor's compensating
	// removal on a failed process_event, spec.md §4.3.1).
	RemoveKELFinalizedEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error
	// GetKELFinalizedEvents returns id's finalized KEL rows; ok is false
	// if no inception for id has ever been recorded. Rows need not arrive
	// pre-sorted — callers sort on Ordinal.
	GetKELFinalizedEvents(ctx context.Context, id prefix.IdentifierPrefix) (rows []TimestampedSignedEventMessage, ok bool, err error)

	// AddReceiptT/AddReceiptNT persist a validated receipt.
	AddReceiptT(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) error
	AddReceiptNT(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) error
	// GetReceiptsT/GetReceiptsNT returns id's persisted receipts; ok is
	// false if none have ever been recorded.
	GetReceiptsT(ctx context.Context, id prefix.IdentifierPrefix) (receipts []eventmessage.SignedTransferableReceipt, ok bool, err error)
	GetReceiptsNT(ctx context.Context, id prefix.IdentifierPrefix) (receipts []eventmessage.SignedNontransferableReceipt, ok bool, err error)

	// AddEscrowTReceipt/AddEscrowNTReceipt file a receipt that arrived
	// before the event it receipts. Returns a correlation ID for the row.
	AddEscrowTReceipt(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) (uuid.UUID, error)
	AddEscrowNTReceipt(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) (uuid.UUID, error)

	// AddDuplicitousEvent files an event rejected with
	// kerierr.ErrEventDuplicate, i.e. one equal to an event already
	// finalized at the same sn (spec.md §7's EventDuplicate side effect).
	AddDuplicitousEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error
}
