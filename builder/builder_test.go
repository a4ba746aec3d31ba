package builder_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/henkvancann/keriox/builder"
	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/seal"
	"github.com/stretchr/testify/require"
)

func genBasicPrefix(t *testing.T) prefix.BasicPrefix {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return prefix.DeriveEd25519Basic(pub)
}

func TestBuildInceptionDefaultsToBasicPrefix(t *testing.T) {
	b, err := builder.New(builder.Inception)
	require.NoError(t, err)

	em, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, event.IlkIcp, em.Event.Data.Ilk)
	require.Equal(t, uint64(0), em.Event.Sn)
	require.Equal(t, prefix.KindBasic, em.Event.Prefix.Kind)
	require.Len(t, em.Event.Data.Icp.KeyConfig.PublicKeys, 1)
	require.False(t, em.Event.Data.Icp.KeyConfig.NextKeyDigest.IsZero())
}

func TestBuildInceptionMultiKeyDerivesSelfAddressing(t *testing.T) {
	k1 := genBasicPrefix(t)
	k2 := genBasicPrefix(t)

	b, err := builder.New(builder.Inception)
	require.NoError(t, err)
	b.WithKeys([]prefix.BasicPrefix{k1, k2}).WithThreshold(keyconfig.NewSimpleThreshold(2))

	em, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, prefix.KindSelfAddressing, em.Event.Prefix.Kind)
	require.True(t, em.VerifySelfAddressingPrefix())
}

func TestBuildRotationCarriesSealsAndPreviousEvent(t *testing.T) {
	b, err := builder.New(builder.Rotation)
	require.NoError(t, err)

	prev := prefix.DeriveBlake3_256([]byte("some prior event bytes"))
	digestSeal := prefix.DeriveBlake3_256([]byte("anchored data"))
	parent := prefix.NewBasicIdentifierPrefix(genBasicPrefix(t))

	b.WithPrefix(parent).
		WithSn(1).
		WithPreviousEvent(prev).
		WithSeal(seal.NewDigestSeal(digestSeal))

	em, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, event.IlkRot, em.Event.Data.Ilk)
	require.Equal(t, uint64(1), em.Event.Sn)
	require.Equal(t, prev.Qb64(), em.Event.Data.Rot.PreviousEventHash.Qb64())
	require.Len(t, em.Event.Data.Rot.Data, 1)
}

func TestBuildDelegatedInceptionDerivesSelfAddressing(t *testing.T) {
	delegator := prefix.NewBasicIdentifierPrefix(genBasicPrefix(t))

	b, err := builder.New(builder.DelegatedInception)
	require.NoError(t, err)
	b.WithDelegator(delegator)

	em, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, event.IlkDip, em.Event.Data.Ilk)
	require.Equal(t, prefix.KindSelfAddressing, em.Event.Prefix.Kind)
	require.Equal(t, delegator.Qb64(), em.Event.Data.Dip.Delegator.Qb64())
	require.True(t, em.VerifySelfAddressingPrefix())
}
