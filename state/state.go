// Package state implements IdentifierState and the apply relation that
// folds one signed event onto it (spec.md §4.2). Apply is total over
// well-formed inputs: malformed or out-of-sequence input always returns one
// of the sentinel errors in kerierr rather than panicking.
package state

import (
	"bytes"
	"fmt"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
)

// IdentifierState is the fold of an identifier's KEL up to some event:
// current key config, the canonical bytes of the last accepted event (so
// the next event's previous-event hash can be checked against it), the
// delegator if this is a delegated identifier, the current witness set,
// and a tally of how many establishment events (icp/rot/dip/drt) have been
// applied; interaction events bump sn without changing the tally. Receipt
// processing does not read the tally: it pins a KeyConfig by sn and digest.
type IdentifierState struct {
	Prefix    prefix.IdentifierPrefix
	Sn        uint64
	Last      []byte
	Current   keyconfig.KeyConfig
	Delegator prefix.IdentifierPrefix
	Witnesses event.WitnessConfig
	Tally     int
}

// IsDefault reports whether s is the zero state of an identifier that has
// not yet been incepted.
func (s IdentifierState) IsDefault() bool {
	return s.Prefix.IsDefault()
}

// Apply computes state' = apply(state, event), per spec.md §4.2.
func Apply(s IdentifierState, em eventmessage.EventMessage) (IdentifierState, error) {
	ev := em.Event
	canonical, err := em.Serialize()
	if err != nil {
		return IdentifierState{}, err
	}

	switch ev.Data.Ilk {
	case event.IlkIcp, event.IlkDip:
		return applyInception(s, em, canonical)
	}

	if !s.Prefix.Equal(ev.Prefix) {
		return IdentifierState{}, fmt.Errorf("%w: event prefix does not match state prefix", kerierr.ErrSemantic)
	}
	if ev.Sn == s.Sn {
		// Resubmission of the event already at the head of the log: a
		// byte-identical resubmission is a duplicate, anything else is
		// out of order. Duplicates further back in history (sn < state.Sn)
		// require the full KEL and are detected by the processor instead.
		if bytes.Equal(canonical, s.Last) {
			return IdentifierState{}, kerierr.ErrEventDuplicate
		}
		return IdentifierState{}, fmt.Errorf("%w: sn %d already finalized with a different event", kerierr.ErrEventOutOfOrder, ev.Sn)
	}
	if ev.Sn != s.Sn+1 {
		return IdentifierState{}, fmt.Errorf("%w: expected sn %d, got %d", kerierr.ErrEventOutOfOrder, s.Sn+1, ev.Sn)
	}
	prevHash, ok := ev.Data.PreviousEventHash()
	if !ok {
		return IdentifierState{}, fmt.Errorf("%w: event kind %q carries no previous-event hash", kerierr.ErrSemantic, ev.Data.Ilk)
	}
	if !prevHash.VerifyBinding(s.Last) {
		return IdentifierState{}, fmt.Errorf("%w: previous-event hash does not match state's last event", kerierr.ErrEventOutOfOrder)
	}

	switch ev.Data.Ilk {
	case event.IlkRot, event.IlkDrt:
		return applyRotation(s, em, canonical)
	case event.IlkIxn:
		return applyInteraction(s, canonical), nil
	default:
		return IdentifierState{}, fmt.Errorf("%w: apply does not accept event kind %q", kerierr.ErrSemantic, ev.Data.Ilk)
	}
}

func applyInception(s IdentifierState, em eventmessage.EventMessage, canonical []byte) (IdentifierState, error) {
	if !s.IsDefault() {
		return IdentifierState{}, fmt.Errorf("%w: inception event for an already-incepted identifier", kerierr.ErrSemantic)
	}
	ev := em.Event
	if ev.Sn != 0 {
		return IdentifierState{}, fmt.Errorf("%w: inception sn must be 0, got %d", kerierr.ErrSemantic, ev.Sn)
	}
	kc, ok := ev.Data.KeyConfig()
	if !ok {
		return IdentifierState{}, fmt.Errorf("%w: inception event carries no key config", kerierr.ErrSemantic)
	}

	next := IdentifierState{Prefix: ev.Prefix, Sn: 0, Last: canonical, Current: kc, Tally: 1}

	switch ev.Data.Ilk {
	case event.IlkDip:
		if ev.Prefix.Kind != prefix.KindSelfAddressing {
			return IdentifierState{}, fmt.Errorf("%w: delegated inception prefix must be self-addressing", kerierr.ErrSemantic)
		}
		if !em.VerifySelfAddressingPrefix() {
			return IdentifierState{}, fmt.Errorf("%w: delegated inception prefix does not bind to its own canonical form", kerierr.ErrSemantic)
		}
		delegator, _ := ev.Data.Delegator()
		next.Delegator = delegator
		next.Witnesses = ev.Data.Dip.Inception.Witnesses
	default: // icp
		switch ev.Prefix.Kind {
		case prefix.KindSelfAddressing:
			if !em.VerifySelfAddressingPrefix() {
				return IdentifierState{}, fmt.Errorf("%w: inception prefix does not bind to its own canonical form", kerierr.ErrSemantic)
			}
		case prefix.KindBasic:
			if len(kc.PublicKeys) != 1 || kc.PublicKeys[0].Qb64() != ev.Prefix.Basic.Qb64() {
				return IdentifierState{}, fmt.Errorf("%w: basic-prefix inception does not match its single key", kerierr.ErrSemantic)
			}
		default:
			return IdentifierState{}, fmt.Errorf("%w: inception prefix must be Basic or SelfAddressing", kerierr.ErrSemantic)
		}
		next.Witnesses = ev.Data.Icp.Witnesses
	}
	return next, nil
}

func applyRotation(s IdentifierState, em eventmessage.EventMessage, canonical []byte) (IdentifierState, error) {
	ev := em.Event
	kc, _ := ev.Data.KeyConfig()

	expectedNext := keyconfig.NxtCommitment(kc.Threshold, kc.PublicKeys)
	if s.Current.NextKeyDigest.IsZero() || expectedNext.Qb64() != s.Current.NextKeyDigest.Qb64() {
		return IdentifierState{}, fmt.Errorf("%w: rotation does not satisfy the prior next-key commitment", kerierr.ErrSemantic)
	}

	var wc event.WitnessConfig
	if ev.Data.Ilk == event.IlkDrt {
		wc = ev.Data.Drt.Rotation.Witnesses
	} else {
		wc = ev.Data.Rot.Witnesses
	}

	return IdentifierState{
		Prefix:    s.Prefix,
		Sn:        ev.Sn,
		Last:      canonical,
		Current:   kc,
		Delegator: s.Delegator,
		Witnesses: mergeWitnessDelta(s.Witnesses, wc),
		Tally:     s.Tally + 1,
	}, nil
}

func applyInteraction(s IdentifierState, canonical []byte) IdentifierState {
	return IdentifierState{
		Prefix:    s.Prefix,
		Sn:        s.Sn + 1,
		Last:      canonical,
		Current:   s.Current,
		Delegator: s.Delegator,
		Witnesses: s.Witnesses,
		Tally:     s.Tally,
	}
}

// mergeWitnessDelta applies a rotation's witness removals and additions to
// the current witness set and carries forward the rotation's own threshold.
func mergeWitnessDelta(current event.WitnessConfig, delta event.WitnessConfig) event.WitnessConfig {
	removed := make(map[string]bool, len(delta.Removed))
	for _, bp := range delta.Removed {
		removed[bp.Qb64()] = true
	}
	kept := make([]prefix.BasicPrefix, 0, len(current.Witnesses))
	for _, bp := range current.Witnesses {
		if !removed[bp.Qb64()] {
			kept = append(kept, bp)
		}
	}
	kept = append(kept, delta.Added...)
	return event.WitnessConfig{Threshold: delta.Threshold, Witnesses: kept}
}
