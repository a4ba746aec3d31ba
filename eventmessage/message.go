package eventmessage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/seal"
)

// EventMessage pairs an event.Event with the version framing it was (or
// will be) serialized under.
type EventMessage struct {
	Version Version
	Event   event.Event
}

// kv is one ordered field of the canonical object: key plus its already
// rendered (compact, no surrounding whitespace) JSON value.
type kv struct {
	Key string
	Raw []byte
}

func jstr(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func jarr(raw [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range raw {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func hexSn(sn uint64) string { return fmt.Sprintf("%x", sn) }

func prefixArray(ps []prefix.BasicPrefix) [][]byte {
	out := make([][]byte, len(ps))
	for i, p := range ps {
		out[i] = jstr(p.Qb64())
	}
	return out
}

// sealJSON renders the ordered object for one seal, per the field order
// observed on the wire: event seals as {i,s,d}, digest seals as {d}.
func sealJSON(s seal.Seal) []byte {
	switch s.Kind {
	case seal.KindEvent:
		return buildObject([]kv{
			{"i", jstr(s.Event.Prefix.Qb64())},
			{"s", jstr(hexSn(s.Event.Sn))},
			{"d", jstr(s.Event.EventDigest.Qb64())},
		})
	case seal.KindLocation:
		return buildObject([]kv{
			{"i", jstr(s.Location.Prefix.Qb64())},
			{"s", jstr(hexSn(s.Location.Sn))},
			{"t", jstr(s.Location.Ilk)},
			{"p", jstr(s.Location.PriorDigest.Qb64())},
		})
	case seal.KindRoot:
		return buildObject([]kv{{"rd", jstr(s.Root.Qb64())}})
	default: // KindDigest
		return buildObject([]kv{{"d", jstr(s.Digest.Qb64())}})
	}
}

func sealArray(seals []seal.Seal) [][]byte {
	out := make([][]byte, len(seals))
	for i, s := range seals {
		out[i] = sealJSON(s)
	}
	return out
}

func buildObject(fields []kv) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(jstr(f.Key))
		buf.WriteByte(':')
		buf.Write(f.Raw)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// canonicalFields lays out the event body's fields in the exact order KERI
// uses per ilk (spec.md §6's wire table), version field first with a
// size-placeholder value to be backfilled by Serialize.
func canonicalFields(em EventMessage) ([]kv, error) {
	return canonicalFieldsWithPrefix(em, em.Event.Prefix.Qb64())
}

// canonicalFieldsWithPrefix is canonicalFields with the "i" field's value
// substituted by prefixStr, letting DeriveSelfAddressingPrefix and
// VerifySelfAddressingPrefix render the body under the SAID dummy-filled
// form without needing a well-typed IdentifierPrefix for it.
func canonicalFieldsWithPrefix(em EventMessage, prefixStr string) ([]kv, error) {
	ev := em.Event
	ilk := ev.Data.Ilk
	fields := []kv{
		{"v", jstr(em.Version.placeholder())},
		{"i", jstr(prefixStr)},
		{"s", jstr(hexSn(ev.Sn))},
		{"t", jstr(string(ilk))},
	}

	switch ilk {
	case event.IlkIcp:
		p := ev.Data.Icp
		fields = append(fields,
			kv{"kt", thresholdValueJSON(p.KeyConfig.Threshold)},
			kv{"k", jarr(prefixArray(p.KeyConfig.PublicKeys))},
			kv{"n", jstr(p.KeyConfig.NextKeyDigest.Qb64())},
			kv{"bt", jstr(fmt.Sprintf("%d", p.Witnesses.Threshold))},
			kv{"b", jarr(prefixArray(p.Witnesses.Witnesses))},
			kv{"c", jarr(stringArray(p.Config))},
			kv{"a", jarr(nil)},
		)
	case event.IlkRot:
		p := ev.Data.Rot
		fields = append(fields,
			kv{"p", jstr(p.PreviousEventHash.Qb64())},
			kv{"kt", thresholdValueJSON(p.KeyConfig.Threshold)},
			kv{"k", jarr(prefixArray(p.KeyConfig.PublicKeys))},
			kv{"n", jstr(p.KeyConfig.NextKeyDigest.Qb64())},
			kv{"bt", jstr(fmt.Sprintf("%d", p.Witnesses.Threshold))},
			kv{"br", jarr(prefixArray(p.Witnesses.Removed))},
			kv{"ba", jarr(prefixArray(p.Witnesses.Added))},
			kv{"a", jarr(sealArray(p.Data))},
		)
	case event.IlkIxn:
		p := ev.Data.Ixn
		fields = append(fields,
			kv{"p", jstr(p.PreviousEventHash.Qb64())},
			kv{"a", jarr(sealArray(p.Data))},
		)
	case event.IlkDip:
		p := ev.Data.Dip.Inception
		fields = append(fields,
			kv{"kt", thresholdValueJSON(p.KeyConfig.Threshold)},
			kv{"k", jarr(prefixArray(p.KeyConfig.PublicKeys))},
			kv{"n", jstr(p.KeyConfig.NextKeyDigest.Qb64())},
			kv{"bt", jstr(fmt.Sprintf("%d", p.Witnesses.Threshold))},
			kv{"b", jarr(prefixArray(p.Witnesses.Witnesses))},
			kv{"c", jarr(stringArray(p.Config))},
			kv{"a", jarr(nil)},
			kv{"di", jstr(ev.Data.Dip.Delegator.Qb64())},
		)
	case event.IlkDrt:
		p := ev.Data.Drt.Rotation
		fields = append(fields,
			kv{"p", jstr(p.PreviousEventHash.Qb64())},
			kv{"kt", thresholdValueJSON(p.KeyConfig.Threshold)},
			kv{"k", jarr(prefixArray(p.KeyConfig.PublicKeys))},
			kv{"n", jstr(p.KeyConfig.NextKeyDigest.Qb64())},
			kv{"bt", jstr(fmt.Sprintf("%d", p.Witnesses.Threshold))},
			kv{"br", jarr(prefixArray(p.Witnesses.Removed))},
			kv{"ba", jarr(prefixArray(p.Witnesses.Added))},
			kv{"a", jarr(sealArray(p.Data))},
		)
	case event.IlkRct:
		fields = append(fields, kv{"d", jstr(ev.Data.Rct.EventDigest.Qb64())})
	default:
		return nil, fmt.Errorf("%w: unknown event ilk %q", kerierr.ErrSemantic, ilk)
	}
	return fields, nil
}

func stringArray(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = jstr(s)
	}
	return out
}

// thresholdValueJSON renders a SignatureThreshold's wire value: a decimal
// string for Simple, or an array of fraction strings for Weighted.
func thresholdValueJSON(t interface {
	CanonicalEncoding() []byte
}) []byte {
	enc := t.CanonicalEncoding()
	if len(enc) > 0 && enc[0] == '[' {
		return enc
	}
	return jstr(string(enc))
}

// Serialize renders em as JSON or CBOR per em.Version.Serialization, with
// the version field's size backfilled to the body's own byte length. The
// placeholder and final version strings share the same fixed length, so
// backfilling is a same-length in-place substring replacement.
func (em EventMessage) Serialize() ([]byte, error) {
	return em.serializeWithPrefix(em.Event.Prefix.Qb64())
}

func (em EventMessage) serializeWithPrefix(prefixStr string) ([]byte, error) {
	fields, err := canonicalFieldsWithPrefix(em, prefixStr)
	if err != nil {
		return nil, err
	}

	placeholder := []byte(em.Version.placeholder())

	switch em.Version.Serialization {
	case SerializationCBOR:
		body, err := encodeCBORObject(fields)
		if err != nil {
			return nil, err
		}
		return backfillSize(body, placeholder, em.Version)
	default: // JSON
		body := buildObject(fields)
		return backfillSize(body, placeholder, em.Version)
	}
}

func backfillSize(body, placeholder []byte, v Version) ([]byte, error) {
	idx := bytes.Index(body, placeholder)
	if idx < 0 {
		return nil, fmt.Errorf("%w: version placeholder not found in serialized body", kerierr.ErrSemantic)
	}
	final := Version{Protocol: v.Protocol, Serialization: v.Serialization, Size: len(body)}
	finalStr := []byte(final.String())
	if len(finalStr) != len(placeholder) {
		return nil, fmt.Errorf("%w: backfilled version string changed length", kerierr.ErrSemantic)
	}
	out := make([]byte, len(body))
	copy(out, body)
	copy(out[idx:idx+len(finalStr)], finalStr)
	return out, nil
}

// Digest returns the self-addressing digest of em's canonical serialization
// — the event's own identity digest, used both as a SelfAddressing
// IdentifierPrefix (for icp/dip) and as the PreviousEventHash seal carried
// by the next event in the log.
func (em EventMessage) Digest() (prefix.SelfAddressingPrefix, error) {
	raw, err := em.Serialize()
	if err != nil {
		return prefix.SelfAddressingPrefix{}, err
	}
	return prefix.DeriveBlake3_256(raw), nil
}

// selfAddressingDummy is the SAID "dummy" character KERI pads a
// self-addressing field with while that field's own digest is being
// computed — a '#' repeated to the field's final qb64 length (44 chars for
// a Blake3-256 prefix), never a well-formed derivation-coded value. Since it
// is the same length as the real prefix that replaces it, substituting it in
// or out never perturbs the body's backfilled version size.
func selfAddressingDummy() string {
	return strings.Repeat("#", 44) // 1 code char + 43 base64url chars for a 32-byte digest
}

// DeriveSelfAddressingPrefix computes the self-addressing prefix an icp or
// dip event must carry: the digest of its own canonical serialization with
// its "i" field held at the SAID dummy value (a self-addressing prefix
// cannot be the digest of a body that already contains it — it must be the
// digest of the body as it existed one step earlier, with the dummy filler
// in its place). It returns the derived prefix and the final EventMessage
// with that prefix installed, ready for Serialize/Digest.
func (em EventMessage) DeriveSelfAddressingPrefix() (prefix.SelfAddressingPrefix, EventMessage, error) {
	raw, err := em.serializeWithPrefix(selfAddressingDummy())
	if err != nil {
		return prefix.SelfAddressingPrefix{}, EventMessage{}, err
	}
	digest := prefix.DeriveBlake3_256(raw)
	final := em
	final.Event.Prefix = prefix.NewSelfAddressingIdentifierPrefix(digest)
	return digest, final, nil
}

// VerifySelfAddressingPrefix reports whether em's own "i" field is the
// correct self-addressing derivation of an icp/dip event over itself, per
// the dummy-substitution scheme DeriveSelfAddressingPrefix uses to produce
// it. false if em's prefix is not a SelfAddressing prefix at all.
func (em EventMessage) VerifySelfAddressingPrefix() bool {
	if em.Event.Prefix.Kind != prefix.KindSelfAddressing {
		return false
	}
	raw, err := em.serializeWithPrefix(selfAddressingDummy())
	if err != nil {
		return false
	}
	digest := prefix.DeriveBlake3_256(raw)
	return digest.Qb64() == em.Event.Prefix.SelfAddressing.Qb64()
}
