package prefix_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/henkvancann/keriox/prefix"
	"github.com/stretchr/testify/require"
)

func TestSelfAddressingRoundTrip(t *testing.T) {
	sap := prefix.DeriveBlake3_256([]byte("hello keri"))
	require.True(t, sap.VerifyBinding([]byte("hello keri")))
	require.False(t, sap.VerifyBinding([]byte("tampered")))

	parsed, err := prefix.ParseSelfAddressingPrefix(sap.Qb64())
	require.NoError(t, err)
	require.Equal(t, sap, parsed)
}

func TestBasicPrefixRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bp := prefix.DeriveEd25519Basic(pub)
	sig := ed25519.Sign(priv, []byte("event bytes"))
	require.True(t, bp.Verify([]byte("event bytes"), sig))
	require.False(t, bp.Verify([]byte("other bytes"), sig))

	parsed, err := prefix.ParseBasicPrefix(bp.Qb64())
	require.NoError(t, err)
	require.Equal(t, bp, parsed)
}

func TestIdentifierPrefixVariants(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	bp := prefix.DeriveEd25519Basic(pub)

	basicID := prefix.NewBasicIdentifierPrefix(bp)
	require.Equal(t, prefix.KindBasic, basicID.Kind)
	require.False(t, basicID.IsDefault())

	sap := prefix.DeriveBlake3_256([]byte("icp event"))
	saID := prefix.NewSelfAddressingIdentifierPrefix(sap)
	require.True(t, saID.VerifyBinding([]byte("icp event")))
	require.False(t, basicID.VerifyBinding([]byte("icp event")))

	var zero prefix.IdentifierPrefix
	require.True(t, zero.IsDefault())
	require.Equal(t, "", zero.Qb64())

	roundTripped, err := prefix.ParseIdentifierPrefix(saID.Qb64())
	require.NoError(t, err)
	require.True(t, roundTripped.Equal(saID))
}

func TestKERIpyVectorPrefixIsSelfAddressing(t *testing.T) {
	// From the S1 end-to-end scenario (spec.md §8).
	id, err := prefix.ParseIdentifierPrefix("EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8")
	require.NoError(t, err)
	require.Equal(t, prefix.KindSelfAddressing, id.Kind)
	require.Equal(t, "EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8", id.Qb64())
}
