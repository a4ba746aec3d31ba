// Package prefix implements the primitive codecs of the KERI data model:
// self-addressing digest prefixes, basic (raw public key) prefixes, and the
// tagged IdentifierPrefix that wraps them. Equality throughout this package
// is byte-exact on the qb64 textual encoding, per spec.
package prefix

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"lukechampine.com/blake3"
)

// Derivation codes. Single-character CESR-style codes: one selector byte
// followed by the unpadded base64url encoding of a 32-byte value, giving a
// fixed 44-character qb64 string for every prefix this package supports.
const (
	CodeBlake3_256    = "E" // self-addressing digest, Blake3-256
	CodeEd25519Basic  = "D" // basic prefix, raw Ed25519 public key
	DigestSize        = 32
	Ed25519PubKeySize = ed25519.PublicKeySize
)

// SelfAddressingPrefix is a (derivation-code, digest) pair. It supports
// verifying that the digest of some data, under its derivation code, equals
// the committed digest bytes.
type SelfAddressingPrefix struct {
	Code   string
	Digest []byte
}

// DeriveBlake3_256 computes the self-addressing prefix of data under the
// Blake3-256 derivation.
func DeriveBlake3_256(data []byte) SelfAddressingPrefix {
	sum := blake3.Sum256(data)
	return SelfAddressingPrefix{Code: CodeBlake3_256, Digest: sum[:]}
}

// VerifyBinding reports whether digest(data) under sap's derivation code
// equals sap's committed digest bytes.
func (sap SelfAddressingPrefix) VerifyBinding(data []byte) bool {
	if sap.Code != CodeBlake3_256 {
		return false
	}
	sum := blake3.Sum256(data)
	return bytes.Equal(sum[:], sap.Digest)
}

// IsZero reports whether sap carries no digest.
func (sap SelfAddressingPrefix) IsZero() bool {
	return sap.Code == "" && len(sap.Digest) == 0
}

// Qb64 returns the textual qb64 encoding: code followed by the unpadded
// base64url digest.
func (sap SelfAddressingPrefix) Qb64() string {
	if sap.Code == "" {
		return ""
	}
	return sap.Code + base64.RawURLEncoding.EncodeToString(sap.Digest)
}

func (sap SelfAddressingPrefix) String() string { return sap.Qb64() }

// ParseSelfAddressingPrefix decodes a qb64 self-addressing prefix string.
func ParseSelfAddressingPrefix(s string) (SelfAddressingPrefix, error) {
	if s == "" {
		return SelfAddressingPrefix{}, nil
	}
	if len(s) < 1 {
		return SelfAddressingPrefix{}, fmt.Errorf("prefix: empty self-addressing prefix")
	}
	code := s[:1]
	if code != CodeBlake3_256 {
		return SelfAddressingPrefix{}, fmt.Errorf("prefix: unsupported self-addressing derivation code %q", code)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s[1:])
	if err != nil {
		return SelfAddressingPrefix{}, fmt.Errorf("prefix: decoding self-addressing digest: %w", err)
	}
	return SelfAddressingPrefix{Code: code, Digest: raw}, nil
}

// BasicPrefix is a (key-type, raw public key) pair.
type BasicPrefix struct {
	Code string
	Raw  []byte
}

// DeriveEd25519Basic builds the basic prefix for an Ed25519 public key.
func DeriveEd25519Basic(pub ed25519.PublicKey) BasicPrefix {
	raw := make([]byte, len(pub))
	copy(raw, pub)
	return BasicPrefix{Code: CodeEd25519Basic, Raw: raw}
}

// Verify reports whether sig is a valid Ed25519 signature over data under
// this prefix's public key.
func (bp BasicPrefix) Verify(data, sig []byte) bool {
	if bp.Code != CodeEd25519Basic || len(bp.Raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(bp.Raw), data, sig)
}

// Qb64 returns the textual qb64 encoding.
func (bp BasicPrefix) Qb64() string {
	if bp.Code == "" {
		return ""
	}
	return bp.Code + base64.RawURLEncoding.EncodeToString(bp.Raw)
}

func (bp BasicPrefix) String() string { return bp.Qb64() }

// ParseBasicPrefix decodes a qb64 basic prefix string.
func ParseBasicPrefix(s string) (BasicPrefix, error) {
	if s == "" {
		return BasicPrefix{}, nil
	}
	code := s[:1]
	if code != CodeEd25519Basic {
		return BasicPrefix{}, fmt.Errorf("prefix: unsupported basic derivation code %q", code)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s[1:])
	if err != nil {
		return BasicPrefix{}, fmt.Errorf("prefix: decoding basic public key: %w", err)
	}
	return BasicPrefix{Code: code, Raw: raw}, nil
}

// Kind tags the variant held by an IdentifierPrefix.
type Kind int

const (
	KindUnset Kind = iota
	KindBasic
	KindSelfAddressing
)

// IdentifierPrefix is a tagged value identifying an identifier: unset,
// Basic(public-key), or SelfAddressing(digest-of-inception-event).
// Equality is byte-exact on the qb64 encoded form.
type IdentifierPrefix struct {
	Kind           Kind
	Basic          BasicPrefix
	SelfAddressing SelfAddressingPrefix
}

// NewBasicIdentifierPrefix wraps a BasicPrefix as an IdentifierPrefix.
func NewBasicIdentifierPrefix(bp BasicPrefix) IdentifierPrefix {
	return IdentifierPrefix{Kind: KindBasic, Basic: bp}
}

// NewSelfAddressingIdentifierPrefix wraps a SelfAddressingPrefix as an
// IdentifierPrefix.
func NewSelfAddressingIdentifierPrefix(sap SelfAddressingPrefix) IdentifierPrefix {
	return IdentifierPrefix{Kind: KindSelfAddressing, SelfAddressing: sap}
}

// IsDefault reports whether ip is the unset default value.
func (ip IdentifierPrefix) IsDefault() bool {
	return ip.Kind == KindUnset
}

// Qb64 returns the textual qb64 encoding of whichever variant is held.
func (ip IdentifierPrefix) Qb64() string {
	switch ip.Kind {
	case KindBasic:
		return ip.Basic.Qb64()
	case KindSelfAddressing:
		return ip.SelfAddressing.Qb64()
	default:
		return ""
	}
}

func (ip IdentifierPrefix) String() string { return ip.Qb64() }

// Equal reports byte-exact equality of the encoded form.
func (ip IdentifierPrefix) Equal(other IdentifierPrefix) bool {
	return ip.Qb64() == other.Qb64()
}

// ParseIdentifierPrefix decodes a qb64 identifier prefix string, detecting
// its variant from the leading derivation code.
func ParseIdentifierPrefix(s string) (IdentifierPrefix, error) {
	if s == "" {
		return IdentifierPrefix{Kind: KindUnset}, nil
	}
	switch s[:1] {
	case CodeEd25519Basic:
		bp, err := ParseBasicPrefix(s)
		if err != nil {
			return IdentifierPrefix{}, err
		}
		return NewBasicIdentifierPrefix(bp), nil
	case CodeBlake3_256:
		sap, err := ParseSelfAddressingPrefix(s)
		if err != nil {
			return IdentifierPrefix{}, err
		}
		return NewSelfAddressingIdentifierPrefix(sap), nil
	default:
		return IdentifierPrefix{}, fmt.Errorf("prefix: unrecognized identifier prefix code %q", s[:1])
	}
}

// VerifyBinding reports whether data binds to this identifier prefix: for a
// SelfAddressing prefix, digest(data) must equal the committed digest; a
// Basic prefix never binds to arbitrary data (it binds directly to a single
// public key, checked by the caller against key_config).
func (ip IdentifierPrefix) VerifyBinding(data []byte) bool {
	if ip.Kind != KindSelfAddressing {
		return false
	}
	return ip.SelfAddressing.VerifyBinding(data)
}
