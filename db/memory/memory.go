// Package memory implements an in-memory db.Database: maps guarded by a
// sync.RWMutex, grounded on the teacher's in-memory test doubles
// (massifs/testcommitter.go, massifs/testcontext.go), generalized from a
// single-massif blob store to one row set per identifier. Suitable for
// tests and for embedding in callers that don't need durability.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/henkvancann/keriox/db"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/prefix"
)

type identifierRows struct {
	kel         []db.TimestampedSignedEventMessage
	nextOrdinal uint64
	receiptsT   []eventmessage.SignedTransferableReceipt
	receiptsNT  []eventmessage.SignedNontransferableReceipt
	escrowT     []db.EscrowedTransferableReceipt
	escrowNT    []db.EscrowedNontransferableReceipt
	duplicitous []eventmessage.SignedEventMessage
}

// Database is the in-memory db.Database implementation.
type Database struct {
	mu   sync.RWMutex
	rows map[string]*identifierRows
}

// New returns an empty in-memory Database.
func New() *Database {
	return &Database{rows: make(map[string]*identifierRows)}
}

func (d *Database) rowsFor(id prefix.IdentifierPrefix) *identifierRows {
	key := id.Qb64()
	r, ok := d.rows[key]
	if !ok {
		r = &identifierRows{}
		d.rows[key] = r
	}
	return r
}

func serializeOrPanic(sm eventmessage.SignedEventMessage) []byte {
	raw, err := sm.Serialize()
	if err != nil {
		// Database rows only ever hold signed messages that have already
		// been successfully serialized once by the processor; a failure
		// here means a caller built a SignedEventMessage by hand and
		// passed it straight to the database, which is a programming
		// error, not a storage error.
		panic(fmt.Sprintf("memory: serializing signed event: %v", err))
	}
	return raw
}

func (d *Database) AddKELFinalizedEvent(_ context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	r.kel = append(r.kel, db.TimestampedSignedEventMessage{Ordinal: r.nextOrdinal, SignedEventMessage: signed})
	r.nextOrdinal++
	return nil
}

func (d *Database) RemoveKELFinalizedEvent(_ context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	target := serializeOrPanic(signed)
	for i, row := range r.kel {
		if bytes.Equal(serializeOrPanic(row.SignedEventMessage), target) {
			r.kel = append(r.kel[:i], r.kel[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: no finalized event matching the given bytes for %s", kerierr.ErrStorage, id.Qb64())
}

func (d *Database) GetKELFinalizedEvents(_ context.Context, id prefix.IdentifierPrefix) ([]db.TimestampedSignedEventMessage, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rows[id.Qb64()]
	if !ok || len(r.kel) == 0 {
		return nil, false, nil
	}
	out := make([]db.TimestampedSignedEventMessage, len(r.kel))
	copy(out, r.kel)
	return out, true, nil
}

func (d *Database) AddReceiptT(_ context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	r.receiptsT = append(r.receiptsT, receipt)
	return nil
}

func (d *Database) AddReceiptNT(_ context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	r.receiptsNT = append(r.receiptsNT, receipt)
	return nil
}

func (d *Database) GetReceiptsT(_ context.Context, id prefix.IdentifierPrefix) ([]eventmessage.SignedTransferableReceipt, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rows[id.Qb64()]
	if !ok || len(r.receiptsT) == 0 {
		return nil, false, nil
	}
	out := make([]eventmessage.SignedTransferableReceipt, len(r.receiptsT))
	copy(out, r.receiptsT)
	return out, true, nil
}

func (d *Database) GetReceiptsNT(_ context.Context, id prefix.IdentifierPrefix) ([]eventmessage.SignedNontransferableReceipt, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rows[id.Qb64()]
	if !ok || len(r.receiptsNT) == 0 {
		return nil, false, nil
	}
	out := make([]eventmessage.SignedNontransferableReceipt, len(r.receiptsNT))
	copy(out, r.receiptsNT)
	return out, true, nil
}

func (d *Database) AddEscrowTReceipt(_ context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	row := db.EscrowedTransferableReceipt{ID: uuid.New(), Receipt: receipt}
	r.escrowT = append(r.escrowT, row)
	return row.ID, nil
}

func (d *Database) AddEscrowNTReceipt(_ context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	row := db.EscrowedNontransferableReceipt{ID: uuid.New(), Receipt: receipt}
	r.escrowNT = append(r.escrowNT, row)
	return row.ID, nil
}

func (d *Database) AddDuplicitousEvent(_ context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rowsFor(id)
	r.duplicitous = append(r.duplicitous, signed)
	return nil
}
