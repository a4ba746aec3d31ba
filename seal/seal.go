// Package seal implements the Seal tagged variant: a compact, typed
// commitment to external or in-log data (spec.md §3).
package seal

import "github.com/henkvancann/keriox/prefix"

// Kind tags the variant held by a Seal.
type Kind int

const (
	KindEvent Kind = iota
	KindDigest
	KindLocation
	KindRoot
)

// EventSeal locates a specific event: the identifier it belongs to, its
// sequence number, and the digest of its canonical serialization.
type EventSeal struct {
	Prefix      prefix.IdentifierPrefix
	Sn          uint64
	EventDigest prefix.SelfAddressingPrefix
}

// LocationSeal names an event by its ilk and prior-event digest rather than
// its own digest.
type LocationSeal struct {
	Prefix       prefix.IdentifierPrefix
	Sn           uint64
	Ilk          string
	PriorDigest  prefix.SelfAddressingPrefix
}

// Seal is a tagged union over the four seal variants used in event `data`
// fields and delegation attachments.
type Seal struct {
	Kind     Kind
	Event    EventSeal
	Digest   prefix.SelfAddressingPrefix
	Location LocationSeal
	Root     prefix.SelfAddressingPrefix
}

// NewEventSeal wraps an EventSeal as a Seal.
func NewEventSeal(es EventSeal) Seal { return Seal{Kind: KindEvent, Event: es} }

// NewDigestSeal wraps an arbitrary digest commitment as a Seal.
func NewDigestSeal(d prefix.SelfAddressingPrefix) Seal { return Seal{Kind: KindDigest, Digest: d} }

// NewLocationSeal wraps a LocationSeal as a Seal.
func NewLocationSeal(ls LocationSeal) Seal { return Seal{Kind: KindLocation, Location: ls} }

// NewRootSeal wraps a root commitment as a Seal.
func NewRootSeal(r prefix.SelfAddressingPrefix) Seal { return Seal{Kind: KindRoot, Root: r} }
