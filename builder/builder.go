// Package builder implements a fluent constructor for unsigned
// eventmessage.EventMessages: icp/rot/ixn/dip/drt bodies assembled from
// whatever fields a caller supplies, with reasonable defaults (a fresh
// Ed25519 keypair, a Simple(1) threshold) filling in the rest. Grounded on
// original_source/event_message/event_msg_builder.rs's EventMsgBuilder
// (spec.md §4.4). The caller still owns signing: Build returns an
// EventMessage, not a SignedEventMessage.
package builder

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/seal"
)

// EventType selects which of the five establishment/non-establishment
// event kinds Build produces. Receipts are out of scope: a Builder always
// produces a controller event, never a rct.
type EventType int

const (
	Inception EventType = iota
	Rotation
	Interaction
	DelegatedInception
	DelegatedRotation
)

// Builder accumulates the fields of an unsigned event. Its zero value is
// not usable; construct one with New.
type Builder struct {
	eventType EventType
	prefix    prefix.IdentifierPrefix
	sn        uint64
	threshold keyconfig.SignatureThreshold
	keys      []prefix.BasicPrefix
	nextKeys  []prefix.BasicPrefix
	prevEvent prefix.SelfAddressingPrefix
	seals     []seal.Seal
	delegator prefix.IdentifierPrefix
}

func zeroDigest() prefix.SelfAddressingPrefix {
	return prefix.DeriveBlake3_256(make([]byte, 32))
}

func freshBasicPrefix() (prefix.BasicPrefix, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return prefix.BasicPrefix{}, fmt.Errorf("builder: generating key: %w", err)
	}
	return prefix.DeriveEd25519Basic(pub), nil
}

// New starts a Builder for the given event kind, seeded with a freshly
// generated current key and next key and a Simple(1) threshold, ready to
// build a minimal icp out of the box. Callers that want specific keys call
// WithKeys/WithNextKeys to override these before Build.
func New(eventType EventType) (*Builder, error) {
	key, err := freshBasicPrefix()
	if err != nil {
		return nil, err
	}
	nextKey, err := freshBasicPrefix()
	if err != nil {
		return nil, err
	}
	return &Builder{
		eventType: eventType,
		sn:        1,
		threshold: keyconfig.NewSimpleThreshold(1),
		keys:      []prefix.BasicPrefix{key},
		nextKeys:  []prefix.BasicPrefix{nextKey},
		prevEvent: zeroDigest(),
	}, nil
}

// WithPrefix sets the identifier prefix the built event is issued under.
// Leave unset for an icp/dip whose prefix should be derived from the event
// itself (self-addressing) or assigned from a single basic key.
func (b *Builder) WithPrefix(p prefix.IdentifierPrefix) *Builder {
	b.prefix = p
	return b
}

// WithKeys overrides the current key set.
func (b *Builder) WithKeys(keys []prefix.BasicPrefix) *Builder {
	b.keys = keys
	return b
}

// WithNextKeys overrides the pre-rotation next key set committed to by
// the next-key digest.
func (b *Builder) WithNextKeys(nextKeys []prefix.BasicPrefix) *Builder {
	b.nextKeys = nextKeys
	return b
}

// WithSn sets the sequence number, ignored for icp/dip (always 0).
func (b *Builder) WithSn(sn uint64) *Builder {
	b.sn = sn
	return b
}

// WithPreviousEvent sets the digest of the event this one follows,
// required for rot/ixn/drt.
func (b *Builder) WithPreviousEvent(prevEvent prefix.SelfAddressingPrefix) *Builder {
	b.prevEvent = prevEvent
	return b
}

// WithSeal appends seals to the event's anchored data (rot/ixn/drt only).
func (b *Builder) WithSeal(seals ...seal.Seal) *Builder {
	b.seals = append(b.seals, seals...)
	return b
}

// WithDelegator sets the delegating identifier (dip only; a drt's
// delegator comes from the delegate's own state, not from the event body).
func (b *Builder) WithDelegator(delegator prefix.IdentifierPrefix) *Builder {
	b.delegator = delegator
	return b
}

// WithThreshold overrides the default Simple(1) signing threshold.
func (b *Builder) WithThreshold(threshold keyconfig.SignatureThreshold) *Builder {
	b.threshold = threshold
	return b
}

// resolvedPrefix applies the same defaulting rule as the original: an
// unset prefix with exactly one current key is assigned that key's basic
// prefix. A multi-key icp/dip left unset falls through to self-addressing
// derivation in Build, rather than the panic the original leaves as a
// todo for that case.
func (b *Builder) resolvedPrefix(kc keyconfig.KeyConfig) prefix.IdentifierPrefix {
	if b.prefix.IsDefault() && len(kc.PublicKeys) == 1 {
		return prefix.NewBasicIdentifierPrefix(kc.PublicKeys[0])
	}
	return b.prefix
}

// Build assembles the unsigned EventMessage. Establishment events (icp,
// rot, dip, drt) carry the KeyConfig computed from the builder's current
// keys, threshold, and next-key commitment; icp/dip additionally resolve
// their own identifier prefix, deriving a self-addressing one when no
// basic prefix applies.
func (b *Builder) Build() (eventmessage.EventMessage, error) {
	nextKeyDigest := keyconfig.NxtCommitment(b.threshold, b.nextKeys)
	kc := keyconfig.KeyConfig{PublicKeys: b.keys, Threshold: b.threshold, NextKeyDigest: nextKeyDigest}
	resolved := b.resolvedPrefix(kc)
	version := eventmessage.Version{Protocol: "KERI10", Serialization: eventmessage.SerializationJSON}

	switch b.eventType {
	case Inception:
		icp := event.InceptionPayload{KeyConfig: kc}
		if resolved.Kind == prefix.KindBasic {
			em := eventmessage.EventMessage{
				Version: version,
				Event: event.Event{
					Prefix: resolved,
					Sn:     0,
					Data:   event.EventData{Ilk: event.IlkIcp, Icp: icp},
				},
			}
			return em, nil
		}
		draft := eventmessage.EventMessage{
			Version: version,
			Event: event.Event{
				Sn:   0,
				Data: event.EventData{Ilk: event.IlkIcp, Icp: icp},
			},
		}
		_, final, err := draft.DeriveSelfAddressingPrefix()
		return final, err

	case Rotation:
		em := eventmessage.EventMessage{
			Version: version,
			Event: event.Event{
				Prefix: resolved,
				Sn:     b.sn,
				Data: event.EventData{Ilk: event.IlkRot, Rot: event.RotationPayload{
					PreviousEventHash: b.prevEvent,
					KeyConfig:         kc,
					Data:              b.seals,
				}},
			},
		}
		return em, nil

	case Interaction:
		em := eventmessage.EventMessage{
			Version: version,
			Event: event.Event{
				Prefix: resolved,
				Sn:     b.sn,
				Data: event.EventData{Ilk: event.IlkIxn, Ixn: event.InteractionPayload{
					PreviousEventHash: b.prevEvent,
					Data:              b.seals,
				}},
			},
		}
		return em, nil

	case DelegatedInception:
		icp := event.InceptionPayload{KeyConfig: kc}
		draft := eventmessage.EventMessage{
			Version: version,
			Event: event.Event{
				Sn: 0,
				Data: event.EventData{Ilk: event.IlkDip, Dip: event.DelegatedInceptionPayload{
					Inception: icp,
					Delegator: b.delegator,
				}},
			},
		}
		_, final, err := draft.DeriveSelfAddressingPrefix()
		return final, err

	case DelegatedRotation:
		em := eventmessage.EventMessage{
			Version: version,
			Event: event.Event{
				Prefix: resolved,
				Sn:     b.sn,
				Data: event.EventData{Ilk: event.IlkDrt, Drt: event.DelegatedRotationPayload{
					Rotation: event.RotationPayload{
						PreviousEventHash: b.prevEvent,
						KeyConfig:         kc,
						Data:              b.seals,
					},
				}},
			},
		}
		return em, nil

	default:
		return eventmessage.EventMessage{}, fmt.Errorf("%w: unknown builder event type %d", kerierr.ErrSemantic, b.eventType)
	}
}
