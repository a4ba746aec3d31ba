// Package azureblob implements db.Database over Azure Blob Storage,
// etag-guarded the same way massifs.MassifCommitter.CommitContext guards
// its blob writes: a creating write fails if the blob already exists
// (If-None-Match "*"), and an updating write fails if the blob has moved
// since it was last read (If-Match the read etag). It is its own Go
// module so that a caller who only needs db/memory never pulls in the
// Azure SDK transitively.
package azureblob

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	azStorageBlob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"
	"github.com/henkvancann/keriox/db"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/prefix"
)

const azblobBlobNotFound = "BlobNotFound"

// isBlobNotFound reports whether err is the Azure SDK's own "blob does not
// exist" error, the same translation massifs.IsBlobNotFound performs.
func isBlobNotFound(err error) bool {
	var ierr *azStorageBlob.InternalError
	if !errors.As(err, &ierr) {
		return false
	}
	serr := &azStorageBlob.StorageError{}
	if !ierr.As(&serr) {
		return false
	}
	return serr.ErrorCode == azblobBlobNotFound
}

func readAll(rr *azblob.ReaderResponse) ([]byte, error) {
	defer rr.Body.Close()
	return io.ReadAll(rr.Body)
}

// encodeEscrowFrame lays out one escrow row as a correlation id followed by
// a length-prefixed body: 16 bytes of uuid, 4 bytes of big-endian length,
// then body itself.
func encodeEscrowFrame(id uuid.UUID, body []byte) []byte {
	out := make([]byte, 0, 16+4+len(body))
	out = append(out, id[:]...)
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	out = append(out, length[:]...)
	out = append(out, body...)
	return out
}

// blobStore is the subset of azblob.Storer this package depends on.
type blobStore interface {
	Put(ctx context.Context, path string, body azblob.ReaderCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	Reader(ctx context.Context, path string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
}

// Database is a db.Database backed by one container, with each
// identifier's rows held under a handful of fixed-suffix blob paths.
type Database struct {
	Store  blobStore
	Log    logger.Logger
	Prefix string // blob path prefix, e.g. "v1/keri"
}

// New builds a Database writing blobs under pathPrefix in store.
func New(store blobStore, log logger.Logger, pathPrefix string) *Database {
	return &Database{Store: store, Log: log, Prefix: pathPrefix}
}

func (d *Database) blobPath(id prefix.IdentifierPrefix, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", d.Prefix, id.Qb64(), suffix)
}

const (
	suffixKEL         = "kel"
	suffixReceiptsT   = "receipts-t"
	suffixReceiptsNT  = "receipts-nt"
	suffixEscrowT     = "escrow-t"
	suffixEscrowNT    = "escrow-nt"
	suffixDuplicitous = "duplicitous"
)

// readBlob fetches path's current bytes and etag. found is false if the
// blob has never been written.
func (d *Database) readBlob(ctx context.Context, path string) (data []byte, etag string, found bool, err error) {
	rr, err := d.Store.Reader(ctx, path)
	if err != nil {
		if isBlobNotFound(err) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}
	buf, err := readAll(rr)
	if err != nil {
		return nil, "", false, err
	}
	etagStr := ""
	if rr.ETag != nil {
		etagStr = *rr.ETag
	}
	return buf, etagStr, true, nil
}

// writeBlob uploads data to path, guarded exactly as MassifCommitter.CommitContext
// guards a massif blob write: If-None-Match "*" when creating, If-Match
// etag when updating an existing blob. Callers that lose a concurrent
// race get the write back as an error — this package does not retry, the
// same division of responsibility the teacher's own committer uses.
func (d *Database) writeBlob(ctx context.Context, path string, data []byte, etag string, creating bool) error {
	var opts []azblob.Option
	if creating {
		opts = append(opts, azblob.WithEtagNoneMatch("*"))
	} else {
		opts = append(opts, azblob.WithEtagMatch(etag))
	}
	_, err := d.Store.Put(ctx, path, azblob.NewBytesReaderCloser(data), opts...)
	if err != nil {
		d.Log.Debugf("writeBlob: %s (creating=%v): %v", path, creating, err)
	}
	return err
}

func (d *Database) AddKELFinalizedEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	path := d.blobPath(id, suffixKEL)
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	raw, err := signed.Serialize()
	if err != nil {
		return err
	}
	if err := d.writeBlob(ctx, path, append(data, raw...), etag, !found); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}

func (d *Database) RemoveKELFinalizedEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	path := d.blobPath(id, suffixKEL)
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	if !found {
		return fmt.Errorf("%w: no finalized KEL for %s", kerierr.ErrStorage, id.Qb64())
	}
	target, err := signed.Serialize()
	if err != nil {
		return err
	}
	rows, err := splitSignedEventMessages(data)
	if err != nil {
		return fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
	}

	kept := make([][]byte, 0, len(rows))
	removed := false
	for _, row := range rows {
		rowBytes, err := row.Serialize()
		if err != nil {
			return err
		}
		if !removed && string(rowBytes) == string(target) {
			removed = true
			continue
		}
		kept = append(kept, rowBytes)
	}
	if !removed {
		return fmt.Errorf("%w: no finalized event matching the given bytes for %s", kerierr.ErrStorage, id.Qb64())
	}
	var out []byte
	for _, r := range kept {
		out = append(out, r...)
	}
	if err := d.writeBlob(ctx, path, out, etag, false); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}

func (d *Database) GetKELFinalizedEvents(ctx context.Context, id prefix.IdentifierPrefix) ([]db.TimestampedSignedEventMessage, bool, error) {
	data, _, found, err := d.readBlob(ctx, d.blobPath(id, suffixKEL))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
	}
	if !found {
		return nil, false, nil
	}
	rows, err := splitSignedEventMessages(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
	}
	out := make([]db.TimestampedSignedEventMessage, len(rows))
	for i, row := range rows {
		out[i] = db.TimestampedSignedEventMessage{Ordinal: uint64(i), SignedEventMessage: row}
	}
	return out, true, nil
}

func splitSignedEventMessages(data []byte) ([]eventmessage.SignedEventMessage, error) {
	var out []eventmessage.SignedEventMessage
	for len(data) > 0 {
		sm, rest, err := eventmessage.ParseSignedEventMessage(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
		data = rest
	}
	return out, nil
}

func (d *Database) AddReceiptT(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) error {
	path := d.blobPath(id, suffixReceiptsT)
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	raw, err := receipt.Serialize()
	if err != nil {
		return err
	}
	if err := d.writeBlob(ctx, path, append(data, raw...), etag, !found); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}

func (d *Database) AddReceiptNT(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) error {
	path := d.blobPath(id, suffixReceiptsNT)
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	raw, err := receipt.Serialize()
	if err != nil {
		return err
	}
	if err := d.writeBlob(ctx, path, append(data, raw...), etag, !found); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}

func (d *Database) GetReceiptsT(ctx context.Context, id prefix.IdentifierPrefix) ([]eventmessage.SignedTransferableReceipt, bool, error) {
	data, _, found, err := d.readBlob(ctx, d.blobPath(id, suffixReceiptsT))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
	}
	if !found {
		return nil, false, nil
	}
	var out []eventmessage.SignedTransferableReceipt
	for len(data) > 0 {
		r, rest, err := eventmessage.ParseSignedTransferableReceipt(data)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
		}
		out = append(out, r)
		data = rest
	}
	return out, true, nil
}

func (d *Database) GetReceiptsNT(ctx context.Context, id prefix.IdentifierPrefix) ([]eventmessage.SignedNontransferableReceipt, bool, error) {
	data, _, found, err := d.readBlob(ctx, d.blobPath(id, suffixReceiptsNT))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
	}
	if !found {
		return nil, false, nil
	}
	var out []eventmessage.SignedNontransferableReceipt
	for len(data) > 0 {
		r, rest, err := eventmessage.ParseSignedNontransferableReceipt(data)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", kerierr.ErrStorage, err)
		}
		out = append(out, r)
		data = rest
	}
	return out, true, nil
}

func (d *Database) addEscrow(ctx context.Context, path string, id uuid.UUID, body []byte) error {
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	frame := encodeEscrowFrame(id, body)
	if err := d.writeBlob(ctx, path, append(data, frame...), etag, !found); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}

func (d *Database) AddEscrowTReceipt(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedTransferableReceipt) (uuid.UUID, error) {
	rid := uuid.New()
	raw, err := receipt.Serialize()
	if err != nil {
		return uuid.UUID{}, err
	}
	if err := d.addEscrow(ctx, d.blobPath(id, suffixEscrowT), rid, raw); err != nil {
		return uuid.UUID{}, err
	}
	return rid, nil
}

func (d *Database) AddEscrowNTReceipt(ctx context.Context, id prefix.IdentifierPrefix, receipt eventmessage.SignedNontransferableReceipt) (uuid.UUID, error) {
	rid := uuid.New()
	raw, err := receipt.Serialize()
	if err != nil {
		return uuid.UUID{}, err
	}
	if err := d.addEscrow(ctx, d.blobPath(id, suffixEscrowNT), rid, raw); err != nil {
		return uuid.UUID{}, err
	}
	return rid, nil
}

func (d *Database) AddDuplicitousEvent(ctx context.Context, id prefix.IdentifierPrefix, signed eventmessage.SignedEventMessage) error {
	path := d.blobPath(id, suffixDuplicitous)
	data, etag, found, err := d.readBlob(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", kerierr.ErrStorage, path, err)
	}
	raw, err := signed.Serialize()
	if err != nil {
		return err
	}
	if err := d.writeBlob(ctx, path, append(data, raw...), etag, !found); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerierr.ErrStorage, path, err)
	}
	return nil
}
