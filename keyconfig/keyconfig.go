// Package keyconfig implements the current key configuration of an
// identifier and the pre-rotation next-key commitment scheme described in
// spec.md §4.1.
package keyconfig

import (
	"fmt"

	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/prefix"
)

// IndexedSignature is a signature tagged with the index of the key in the
// KeyConfig's public_keys list that produced it.
type IndexedSignature struct {
	Index     int
	Signature []byte
}

// KeyConfig holds the current keys, threshold, and next-key commitment of
// an identifier at some point in its KEL.
type KeyConfig struct {
	PublicKeys    []prefix.BasicPrefix
	Threshold     SignatureThreshold
	NextKeyDigest prefix.SelfAddressingPrefix
}

// NxtCommitment computes the next-key commitment per spec.md §4.1: the
// digest of the threshold's canonical encoding, XORed byte-wise with the
// digest of each next key's transferable textual prefix.
func NxtCommitment(threshold SignatureThreshold, nextKeys []prefix.BasicPrefix) prefix.SelfAddressingPrefix {
	acc := prefix.DeriveBlake3_256(threshold.CanonicalEncoding())
	digest := make([]byte, len(acc.Digest))
	copy(digest, acc.Digest)

	for _, nk := range nextKeys {
		keyDigest := prefix.DeriveBlake3_256([]byte(nk.Qb64()))
		for i := 0; i < len(digest) && i < len(keyDigest.Digest); i++ {
			digest[i] ^= keyDigest.Digest[i]
		}
	}

	return prefix.SelfAddressingPrefix{Code: prefix.CodeBlake3_256, Digest: digest}
}

// Verify applies the threshold against per-index signature verifications,
// per spec.md §4.1. It fails with kerierr.ErrSignatureVerification if any
// produced signature is cryptographically invalid at its claimed index, and
// with kerierr.ErrNotEnoughSigs if the threshold is not met by the
// remaining valid signatures.
func (kc KeyConfig) Verify(data []byte, sigs []IndexedSignature) error {
	valid := make(map[int]bool, len(sigs))
	for _, sig := range sigs {
		if sig.Index < 0 || sig.Index >= len(kc.PublicKeys) {
			return fmt.Errorf("%w: signature index %d out of range", kerierr.ErrSignatureVerification, sig.Index)
		}
		if !kc.PublicKeys[sig.Index].Verify(data, sig.Signature) {
			return fmt.Errorf("%w: at index %d", kerierr.ErrSignatureVerification, sig.Index)
		}
		valid[sig.Index] = true
	}
	if !kc.Threshold.satisfiedBy(valid) {
		return kerierr.ErrNotEnoughSigs
	}
	return nil
}
