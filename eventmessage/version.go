// Package eventmessage implements the wire framing around an event.Event:
// the version string, canonical JSON/CBOR serialization with a backfilled
// size field, the digest-of-self, and the attachment grammar carrying
// signatures and receipts (spec.md §6, §9).
package eventmessage

import "fmt"

// Serialization names the body encoding named in the version string's
// serialization segment.
type Serialization string

const (
	SerializationJSON Serialization = "JSON"
	SerializationCBOR Serialization = "CBOR"
)

// Version is the KERI10 version tag prefixed to every event body: protocol,
// serialization kind, and the byte size of the body carrying this exact
// version string. The size is always backfilled after the body is first
// serialized with a zeroed placeholder, since the size field's own length
// must be known before it can name the total.
type Version struct {
	Protocol      string
	Serialization Serialization
	Size          int
}

const protocolTag = "KERI10"

// placeholder returns the fixed-length version string used as a stand-in
// before the real size is known: "KERI10JSON000000_" or "KERI10CBOR000000_".
func (v Version) placeholder() string {
	return fmt.Sprintf("%s%s000000_", protocolTag, v.Serialization)
}

// String renders the final version string with the backfilled size,
// left-padded lowercase hex to the same six-digit width as the placeholder.
func (v Version) String() string {
	return fmt.Sprintf("%s%s%06x_", protocolTag, v.Serialization, v.Size)
}

// versionStringLen is the fixed length of every version string this package
// produces: "KERI10" + "JSON"/"CBOR" + 6 hex digits + "_".
const versionStringLen = len(protocolTag) + 4 + 6 + 1
