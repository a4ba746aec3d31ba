package eventmessage

import (
	"fmt"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/keyconfig"
)

// SignedEventMessage is an EventMessage plus its controller signatures and,
// for a delegated establishment event (dip/drt), the seal source couplets
// binding it to the delegator's anchoring seal.
type SignedEventMessage struct {
	Message     EventMessage
	Signatures  []keyconfig.IndexedSignature
	SourceSeals []SourceSealCouplet
}

// Serialize renders the message body followed by its indexed-signature
// group and, if present, its seal-source-couplet group.
func (sm SignedEventMessage) Serialize() ([]byte, error) {
	body, err := sm.Message.Serialize()
	if err != nil {
		return nil, err
	}
	sigGroup, err := encodeIndexedSignatures(sm.Signatures)
	if err != nil {
		return nil, err
	}
	out := append(body, sigGroup...)
	if len(sm.SourceSeals) > 0 {
		sealGroup, err := encodeSourceSealCouplets(sm.SourceSeals)
		if err != nil {
			return nil, err
		}
		out = append(out, sealGroup...)
	}
	return out, nil
}

// ParseSignedEventMessage decodes one signed event message off the front
// of raw: the JSON body, its indexed-signature group, and — if the body's
// ilk is dip or drt — a trailing seal-source-couplet group. Returns the
// decoded message and any bytes left over (the start of the next message
// in a KEL stream).
func ParseSignedEventMessage(raw []byte) (SignedEventMessage, []byte, error) {
	d, err := ParseEventMessageJSON(raw)
	if err != nil {
		return SignedEventMessage{}, nil, err
	}
	sigs, consumed, err := decodeIndexedSignatures(d.Remainder)
	if err != nil {
		return SignedEventMessage{}, nil, err
	}
	rest := d.Remainder[consumed:]

	sm := SignedEventMessage{Message: d.Message, Signatures: sigs}
	ilk := d.Message.Event.Data.Ilk
	if ilk == event.IlkDip || ilk == event.IlkDrt {
		if len(rest) >= 4 && string(rest[:3]) == "-GA" {
			seals, consumed, err := decodeSourceSealCouplets(rest)
			if err != nil {
				return SignedEventMessage{}, nil, err
			}
			sm.SourceSeals = seals
			rest = rest[consumed:]
		}
	}
	return sm, rest, nil
}

// SignedNontransferableReceipt is a rct event co-signed by a set of
// witnesses, each identified directly by its non-transferable basic
// prefix (spec.md §6's witness receipt).
type SignedNontransferableReceipt struct {
	Receipt  EventMessage
	Couplets []WitnessReceiptCouplet
}

func (r SignedNontransferableReceipt) Serialize() ([]byte, error) {
	body, err := r.Receipt.Serialize()
	if err != nil {
		return nil, err
	}
	group, err := encodeWitnessReceiptCouplets(r.Couplets)
	if err != nil {
		return nil, err
	}
	return append(body, group...), nil
}

// ParseSignedNontransferableReceipt decodes a rct body followed by a "-CA"
// witness-receipt-couplet group. Returns the decoded receipt and any bytes
// left over.
func ParseSignedNontransferableReceipt(raw []byte) (SignedNontransferableReceipt, []byte, error) {
	d, err := ParseEventMessageJSON(raw)
	if err != nil {
		return SignedNontransferableReceipt{}, nil, err
	}
	if d.Message.Event.Data.Ilk != event.IlkRct {
		return SignedNontransferableReceipt{}, nil, fmt.Errorf("%w: expected rct event", kerierr.ErrSemantic)
	}
	couplets, consumed, err := decodeWitnessReceiptCouplets(d.Remainder)
	if err != nil {
		return SignedNontransferableReceipt{}, nil, err
	}
	rest := d.Remainder[consumed:]
	return SignedNontransferableReceipt{Receipt: d.Message, Couplets: couplets}, rest, nil
}

// SignedTransferableReceipt is a rct event signed by a transferable
// validator, identified by an indexed signature against the validator's
// own key config at the seal it names (spec.md §6's validator receipt).
type SignedTransferableReceipt struct {
	Receipt       EventMessage
	ValidatorSeal ValidatorSeal
	Signatures    []keyconfig.IndexedSignature
}

func (r SignedTransferableReceipt) Serialize() ([]byte, error) {
	body, err := r.Receipt.Serialize()
	if err != nil {
		return nil, err
	}
	sealGroup, err := encodeValidatorSeals([]ValidatorSeal{r.ValidatorSeal})
	if err != nil {
		return nil, err
	}
	sigGroup, err := encodeIndexedSignatures(r.Signatures)
	if err != nil {
		return nil, err
	}
	out := append(body, sealGroup...)
	out = append(out, sigGroup...)
	return out, nil
}

// ParseSignedTransferableReceipt decodes a rct body followed by a "-FA"
// validator-seal quadruple group and an "-AA" indexed-signature group.
func ParseSignedTransferableReceipt(raw []byte) (SignedTransferableReceipt, []byte, error) {
	d, err := ParseEventMessageJSON(raw)
	if err != nil {
		return SignedTransferableReceipt{}, nil, err
	}
	if d.Message.Event.Data.Ilk != event.IlkRct {
		return SignedTransferableReceipt{}, nil, fmt.Errorf("%w: expected rct event", kerierr.ErrSemantic)
	}
	seals, consumed, err := decodeValidatorSeals(d.Remainder)
	if err != nil {
		return SignedTransferableReceipt{}, nil, err
	}
	if len(seals) != 1 {
		return SignedTransferableReceipt{}, nil, fmt.Errorf("%w: expected exactly one validator seal", kerierr.ErrSemantic)
	}
	rest := d.Remainder[consumed:]
	sigs, consumed, err := decodeIndexedSignatures(rest)
	if err != nil {
		return SignedTransferableReceipt{}, nil, err
	}
	rest = rest[consumed:]
	return SignedTransferableReceipt{Receipt: d.Message, ValidatorSeal: seals[0], Signatures: sigs}, rest, nil
}
