// Package event implements the EventData tagged variant over the five key
// event kinds plus the receipt envelope, and the Event they're wrapped in
// (spec.md §3, §4.2).
package event

import (
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/seal"
)

// Ilk is the short wire tag for an event kind ("icp", "rot", "ixn", "dip",
// "drt", "rct").
type Ilk string

const (
	IlkIcp Ilk = "icp"
	IlkRot Ilk = "rot"
	IlkIxn Ilk = "ixn"
	IlkDip Ilk = "dip"
	IlkDrt Ilk = "drt"
	IlkRct Ilk = "rct"
)

// WitnessConfig carries the witness threshold and witness-set deltas
// (spec.md §6: bt, b, br, ba).
type WitnessConfig struct {
	Threshold int
	Witnesses []prefix.BasicPrefix
	Removed   []prefix.BasicPrefix
	Added     []prefix.BasicPrefix
}

// InceptionPayload is the icp event's data (also embedded by dip).
type InceptionPayload struct {
	KeyConfig keyconfig.KeyConfig
	Witnesses WitnessConfig
	Config    []string
}

// RotationPayload is the rot event's data (also embedded by drt).
type RotationPayload struct {
	PreviousEventHash prefix.SelfAddressingPrefix
	KeyConfig         keyconfig.KeyConfig
	Witnesses         WitnessConfig
	Data              []seal.Seal
}

// InteractionPayload is the ixn event's data: no key change, just seals.
type InteractionPayload struct {
	PreviousEventHash prefix.SelfAddressingPrefix
	Data              []seal.Seal
}

// DelegatedInceptionPayload is the dip event's data: an inception plus the
// delegator's identifier.
type DelegatedInceptionPayload struct {
	Inception InceptionPayload
	Delegator prefix.IdentifierPrefix
}

// DelegatedRotationPayload is the drt event's data: a rotation with
// delegation semantics (no delegator field — delegator comes from state).
type DelegatedRotationPayload struct {
	Rotation RotationPayload
}

// ReceiptPayload is the rct event's data: the digest of the receipted
// event, carried in the 'd' field.
type ReceiptPayload struct {
	EventDigest prefix.SelfAddressingPrefix
}

// EventData is a tagged union over the six event kinds. Exhaustive
// switches on Ilk replace dynamic dispatch throughout this module.
type EventData struct {
	Ilk Ilk
	Icp InceptionPayload
	Rot RotationPayload
	Ixn InteractionPayload
	Dip DelegatedInceptionPayload
	Drt DelegatedRotationPayload
	Rct ReceiptPayload
}

// IsEstablishment reports whether this event kind sets or rotates keys.
func (ed EventData) IsEstablishment() bool {
	switch ed.Ilk {
	case IlkIcp, IlkRot, IlkDip, IlkDrt:
		return true
	default:
		return false
	}
}

// KeyConfig extracts the KeyConfig carried by an establishment event. ok is
// false for ixn and rct.
func (ed EventData) KeyConfig() (kc keyconfig.KeyConfig, ok bool) {
	switch ed.Ilk {
	case IlkIcp:
		return ed.Icp.KeyConfig, true
	case IlkRot:
		return ed.Rot.KeyConfig, true
	case IlkDip:
		return ed.Dip.Inception.KeyConfig, true
	case IlkDrt:
		return ed.Drt.Rotation.KeyConfig, true
	default:
		return keyconfig.KeyConfig{}, false
	}
}

// PreviousEventHash extracts the previous-event digest carried by any
// non-inception event. ok is false for icp and dip.
func (ed EventData) PreviousEventHash() (d prefix.SelfAddressingPrefix, ok bool) {
	switch ed.Ilk {
	case IlkRot:
		return ed.Rot.PreviousEventHash, true
	case IlkIxn:
		return ed.Ixn.PreviousEventHash, true
	case IlkDrt:
		return ed.Drt.Rotation.PreviousEventHash, true
	default:
		return prefix.SelfAddressingPrefix{}, false
	}
}

// Seals extracts the `data` seal list carried by rot, ixn, and drt events —
// the seals a delegating event may anchor delegated establishment events
// in. ok is false for icp, dip, and rct.
func (ed EventData) Seals() (seals []seal.Seal, ok bool) {
	switch ed.Ilk {
	case IlkRot:
		return ed.Rot.Data, true
	case IlkIxn:
		return ed.Ixn.Data, true
	case IlkDrt:
		return ed.Drt.Rotation.Data, true
	default:
		return nil, false
	}
}

// Delegator extracts the delegator identifier carried by a dip event's
// payload. ok is false otherwise (a drt's delegator comes from state, not
// the payload, per spec.md §4.3.1).
func (ed EventData) Delegator() (d prefix.IdentifierPrefix, ok bool) {
	if ed.Ilk != IlkDip {
		return prefix.IdentifierPrefix{}, false
	}
	return ed.Dip.Delegator, true
}

// Event is {prefix, sn, event_data}.
type Event struct {
	Prefix prefix.IdentifierPrefix
	Sn     uint64
	Data   EventData
}
