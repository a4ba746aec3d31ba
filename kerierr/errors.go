// Package kerierr defines the error taxonomy shared by every keriox
// package: a small set of sentinel values that callers match with
// errors.Is, wrapped with fmt.Errorf("%w: ...") for context.
package kerierr

import "errors"

var (
	// ErrEventOutOfOrder indicates a sequence-number gap, a missing
	// previous-event hash, or a missing delegating event. Callers may
	// escrow the event and retry later.
	ErrEventOutOfOrder = errors.New("keri: event out of order")

	// ErrNotEnoughSigs indicates the signature threshold was not met.
	// Callers may escrow for partial-signature accumulation.
	ErrNotEnoughSigs = errors.New("keri: not enough signatures to meet threshold")

	// ErrSignatureVerification indicates at least one signature was
	// cryptographically invalid at its claimed index.
	ErrSignatureVerification = errors.New("keri: signature verification failed")

	// ErrEventDuplicate indicates the event equals one already accepted
	// at the same sn and prefix.
	ErrEventDuplicate = errors.New("keri: duplicate event")

	// ErrSemantic indicates a structural violation: bad receipt shape,
	// bad binding, wrong next-key commitment, wrong event kind, etc.
	// Always wrapped with a specific message via fmt.Errorf("%w: ...").
	ErrSemantic = errors.New("keri: semantic error")

	// ErrStorage wraps failures reported by the database collaborator.
	ErrStorage = errors.New("keri: storage error")
)
