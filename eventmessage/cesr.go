package eventmessage

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
)

// This file implements a CESR-like attachment grammar grounded on the group
// codes observed in real KERI event streams: "-AA" (indexed Ed25519
// signatures), "-GA" (seal source couplets, used by dip/drt to bind a
// delegated establishment event to its anchoring seal), and "-FA"
// (validator receipt quadruples). The count and per-signature index are
// base64-alphabet digits exactly as on the wire. The byte layout of the
// sequence-number sub-field inside a seal source couplet / validator
// quadruple is this package's own fixed-width simplification (8-byte
// big-endian, not KERI's variable-width CESR Number primitive) — it round
// trips internally but is not byte-compatible with a real KERI stream's
// numeric quadlets.

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func b64IndexChar(n int) (byte, error) {
	if n < 0 || n >= len(b64Alphabet) {
		return 0, fmt.Errorf("%w: count %d out of range for a single base64 digit", kerierr.ErrSemantic, n)
	}
	return b64Alphabet[n], nil
}

func b64CharIndex(c byte) (int, error) {
	idx := strings.IndexByte(b64Alphabet, c)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q is not a base64 digit", kerierr.ErrSemantic, c)
	}
	return idx, nil
}

const sigEntryLen = 2 + 86  // selector+index code, base64 of a 64-byte Ed25519 signature
const snFieldLen = 2 + 11   // "0A" code, base64 of an 8-byte big-endian sn
const digestFieldLen = 44   // 1-char code + base64 of a 32-byte digest
const idFieldLen = 44       // same shape as a digest field

// encodeIndexedSignatures renders the "-AA" indexed-signature group.
func encodeIndexedSignatures(sigs []keyconfig.IndexedSignature) ([]byte, error) {
	countChar, err := b64IndexChar(len(sigs))
	if err != nil {
		return nil, err
	}
	var buf strings.Builder
	buf.WriteString("-AA")
	buf.WriteByte(countChar)
	for _, sig := range sigs {
		idxChar, err := b64IndexChar(sig.Index)
		if err != nil {
			return nil, err
		}
		buf.WriteByte('A')
		buf.WriteByte(idxChar)
		buf.WriteString(base64.RawURLEncoding.EncodeToString(sig.Signature))
	}
	return []byte(buf.String()), nil
}

// decodeIndexedSignatures parses a "-AA" group from the front of data,
// returning the signatures and the number of bytes consumed.
func decodeIndexedSignatures(data []byte) ([]keyconfig.IndexedSignature, int, error) {
	if len(data) < 4 || string(data[:3]) != "-AA" {
		return nil, 0, fmt.Errorf("%w: expected -AA indexed signature group", kerierr.ErrSemantic)
	}
	count, err := b64CharIndex(data[3])
	if err != nil {
		return nil, 0, err
	}
	pos := 4
	sigs := make([]keyconfig.IndexedSignature, count)
	for i := 0; i < count; i++ {
		if pos+sigEntryLen > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated indexed signature entry", kerierr.ErrSemantic)
		}
		entry := data[pos : pos+sigEntryLen]
		if entry[0] != 'A' {
			return nil, 0, fmt.Errorf("%w: unsupported signature selector %q", kerierr.ErrSemantic, entry[0])
		}
		idx, err := b64CharIndex(entry[1])
		if err != nil {
			return nil, 0, err
		}
		sigBytes, err := base64.RawURLEncoding.DecodeString(string(entry[2:]))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decoding signature: %v", kerierr.ErrSemantic, err)
		}
		sigs[i] = keyconfig.IndexedSignature{Index: idx, Signature: sigBytes}
		pos += sigEntryLen
	}
	return sigs, pos, nil
}

func encodeSn(sn uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sn)
	return "0A" + base64.RawURLEncoding.EncodeToString(b[:])
}

func decodeSn(s string) (uint64, error) {
	if len(s) != snFieldLen || s[:2] != "0A" {
		return 0, fmt.Errorf("%w: malformed sequence-number field", kerierr.ErrSemantic)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s[2:])
	if err != nil || len(raw) != 8 {
		return 0, fmt.Errorf("%w: decoding sequence-number field: %v", kerierr.ErrSemantic, err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// SourceSealCouplet is one (sn, digest) couplet identifying a delegating
// event that anchors this delegated establishment event, carried in the
// "-GA" group.
type SourceSealCouplet struct {
	Sn     uint64
	Digest prefix.SelfAddressingPrefix
}

func encodeSourceSealCouplets(couplets []SourceSealCouplet) ([]byte, error) {
	countChar, err := b64IndexChar(len(couplets))
	if err != nil {
		return nil, err
	}
	var buf strings.Builder
	buf.WriteString("-GA")
	buf.WriteByte(countChar)
	for _, c := range couplets {
		buf.WriteString(encodeSn(c.Sn))
		buf.WriteString(c.Digest.Qb64())
	}
	return []byte(buf.String()), nil
}

func decodeSourceSealCouplets(data []byte) ([]SourceSealCouplet, int, error) {
	if len(data) < 4 || string(data[:3]) != "-GA" {
		return nil, 0, fmt.Errorf("%w: expected -GA seal source couplet group", kerierr.ErrSemantic)
	}
	count, err := b64CharIndex(data[3])
	if err != nil {
		return nil, 0, err
	}
	pos := 4
	coupletLen := snFieldLen + digestFieldLen
	out := make([]SourceSealCouplet, count)
	for i := 0; i < count; i++ {
		if pos+coupletLen > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated seal source couplet", kerierr.ErrSemantic)
		}
		sn, err := decodeSn(string(data[pos : pos+snFieldLen]))
		if err != nil {
			return nil, 0, err
		}
		d, err := prefix.ParseSelfAddressingPrefix(string(data[pos+snFieldLen : pos+coupletLen]))
		if err != nil {
			return nil, 0, err
		}
		out[i] = SourceSealCouplet{Sn: sn, Digest: d}
		pos += coupletLen
	}
	return out, pos, nil
}

// ValidatorSeal locates the validator's own last establishment event, per
// the "-FA" quadruple group carried by a transferable receipt.
type ValidatorSeal struct {
	Prefix prefix.IdentifierPrefix
	Sn     uint64
	Digest prefix.SelfAddressingPrefix
}

func encodeValidatorSeals(seals []ValidatorSeal) ([]byte, error) {
	countChar, err := b64IndexChar(len(seals))
	if err != nil {
		return nil, err
	}
	var buf strings.Builder
	buf.WriteString("-FA")
	buf.WriteByte(countChar)
	for _, s := range seals {
		buf.WriteString(s.Prefix.Qb64())
		buf.WriteString(encodeSn(s.Sn))
		buf.WriteString(s.Digest.Qb64())
	}
	return []byte(buf.String()), nil
}

func decodeValidatorSeals(data []byte) ([]ValidatorSeal, int, error) {
	if len(data) < 4 || string(data[:3]) != "-FA" {
		return nil, 0, fmt.Errorf("%w: expected -FA validator seal group", kerierr.ErrSemantic)
	}
	count, err := b64CharIndex(data[3])
	if err != nil {
		return nil, 0, err
	}
	pos := 4
	quadLen := idFieldLen + snFieldLen + digestFieldLen
	out := make([]ValidatorSeal, count)
	for i := 0; i < count; i++ {
		if pos+quadLen > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated validator seal quadruple", kerierr.ErrSemantic)
		}
		ip, err := prefix.ParseIdentifierPrefix(string(data[pos : pos+idFieldLen]))
		if err != nil {
			return nil, 0, err
		}
		sn, err := decodeSn(string(data[pos+idFieldLen : pos+idFieldLen+snFieldLen]))
		if err != nil {
			return nil, 0, err
		}
		d, err := prefix.ParseSelfAddressingPrefix(string(data[pos+idFieldLen+snFieldLen : pos+quadLen]))
		if err != nil {
			return nil, 0, err
		}
		out[i] = ValidatorSeal{Prefix: ip, Sn: sn, Digest: d}
		pos += quadLen
	}
	return out, pos, nil
}

// WitnessReceiptCouplet pairs a witness's basic prefix with its direct
// (non-indexed) signature, carried in the "-CA" group of a nontransferable
// receipt.
type WitnessReceiptCouplet struct {
	Witness   prefix.BasicPrefix
	Signature []byte
}

func encodeWitnessReceiptCouplets(couplets []WitnessReceiptCouplet) ([]byte, error) {
	countChar, err := b64IndexChar(len(couplets))
	if err != nil {
		return nil, err
	}
	var buf strings.Builder
	buf.WriteString("-CA")
	buf.WriteByte(countChar)
	for _, c := range couplets {
		buf.WriteString(c.Witness.Qb64())
		buf.WriteString(base64.RawURLEncoding.EncodeToString(c.Signature))
	}
	return []byte(buf.String()), nil
}

func decodeWitnessReceiptCouplets(data []byte) ([]WitnessReceiptCouplet, int, error) {
	if len(data) < 4 || string(data[:3]) != "-CA" {
		return nil, 0, fmt.Errorf("%w: expected -CA witness receipt couplet group", kerierr.ErrSemantic)
	}
	count, err := b64CharIndex(data[3])
	if err != nil {
		return nil, 0, err
	}
	pos := 4
	sigB64Len := 86
	coupletLen := idFieldLen + sigB64Len
	out := make([]WitnessReceiptCouplet, count)
	for i := 0; i < count; i++ {
		if pos+coupletLen > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated witness receipt couplet", kerierr.ErrSemantic)
		}
		bp, err := prefix.ParseBasicPrefix(string(data[pos : pos+idFieldLen]))
		if err != nil {
			return nil, 0, err
		}
		sig, err := base64.RawURLEncoding.DecodeString(string(data[pos+idFieldLen : pos+coupletLen]))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decoding witness signature: %v", kerierr.ErrSemantic, err)
		}
		out[i] = WitnessReceiptCouplet{Witness: bp, Signature: sig}
		pos += coupletLen
	}
	return out, pos, nil
}
