package processor_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/henkvancann/keriox/builder"
	"github.com/henkvancann/keriox/db/memory"
	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/processor"
	"github.com/henkvancann/keriox/seal"
	"github.com/stretchr/testify/require"
)

func newTestProcessor() *processor.Processor {
	logger.New("NOOP")
	return processor.New(memory.New(), logger.Sugar.WithServiceName("processor_test"))
}

func mustParseSigned(t *testing.T, raw string) eventmessage.SignedEventMessage {
	t.Helper()
	signed, _, err := eventmessage.ParseSignedEventMessage([]byte(raw))
	require.NoError(t, err)
	return signed
}

func genKeyPair(t *testing.T) (prefix.BasicPrefix, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return prefix.DeriveEd25519Basic(pub), priv
}

func signEvent(t *testing.T, em eventmessage.EventMessage, priv ed25519.PrivateKey, index int) eventmessage.SignedEventMessage {
	t.Helper()
	canonical, err := em.Serialize()
	require.NoError(t, err)
	sig := ed25519.Sign(priv, canonical)
	return eventmessage.SignedEventMessage{
		Message:    em,
		Signatures: []keyconfig.IndexedSignature{{Index: index, Signature: sig}},
	}
}

// Events and signatures below are from keripy's test_multisig_digprefix
// (keripy/tests/core/test_eventing.py), the same vectors the teacher's own
// processor tests replay.
const icpRaw = `{"v":"KERI10JSON00014b_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"0","t":"icp","kt":"2","k":["DSuhyBcPZEZLK-fcw5tzHn2N46wRCG_ZOoeKtWTOunRA","DVcuJOOJF1IE8svqEtrSuyQjGTd2HhfAkt9y2QkUtFJI","DT1iAhBWCkvChxNWsby2J0pJyxBIxbAtbLA0Ljx-Grh8"],"n":"E9izzBkXX76sqt0N-tfLzJeRqj0W56p4pDQ_ZqNCDpyw","bt":"0","b":[],"c":[],"a":[]}-AADAAhcaP-l0DkIKlJ87iIVcDx-m0iKPdSArEu63b-2cSEn9wXVGNpWw9nfwxodQ9G8J3q_Pm-AWfDwZGD9fobWuHBAAB6mz7zP0xFNBEBfSKG4mjpPbeOXktaIyX8mfsEa1A3Psf7eKxSrJ5Woj3iUB2AhhLg412-zkk795qxsK2xfdxBAACj5wdW-EyUJNgW0LHePQcSFNxW3ZyPregL4H2FoOrsPxLa3MZx6xYTh6i7YRMGY50ezEjV81hkI1Yce75M_bPCQ`

const rotRaw = `{"v":"KERI10JSON000180_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"1","t":"rot","p":"ElIKmVhsgDtxLhFqsWPASdq9J2slLqG-Oiov0rEG4s-w","kt":"2","k":["DKPE5eeJRzkRTMOoRGVd2m18o8fLqM2j9kaxLhV3x8AQ","D1kcBE7h0ImWW6_Sp7MQxGYSshZZz6XM7OiUE5DXm0dU","D4JDgo3WNSUpt-NG14Ni31_GCmrU0r38yo7kgDuyGkQM"],"n":"EQpRYqbID2rW8X5lB6mOzDckJEIFae6NbJISXgJSN9qg","bt":"0","br":[],"ba":[],"a":[]}-AADAAOA7_2NfORAD7hnavnFDhIQ_1fX1zVjNzFLYLOqW4mLdmNlE4745-o75wtaPX1Reg27YP0lgrCFW_3Evz9ebNAQAB6CJhTEANFN8fAFEdxwbnllsUd3jBTZHeeR-KiYe0yjCdOhbEnTLKTpvwei9QsAP0z3xc6jKjUNJ6PoxNnmD7AQAC4YfEq1tZPteXlH2cLOMjOAxqygRgbDsFRvjEQCHQva1K4YsS3ErQjuKd5Z57Uac-aDaRjeH8KdSSDvtNshIyBw`

const ixnRaw = `{"v":"KERI10JSON000098_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"2","t":"ixn","p":"EFLtKYQZIoCFdSEjP7D5OgqElY2WwFB5vQD0Uvtp4RmI","a":[]}-AADAAip7QM2tvcyC4vbSX4A4avT03hHrJTTlkjQujOZRMroRL897wojcI4DIyxejOqsZcjrZHlU4S3RLYGmVbDEoPDgAB3NZj06_KCwxdTdIgCMETTHVJQa5AB8-dtqoD7ltaFIQxmC2K_ESp6DFLOrGQ2xTr97a-By1beM66YyBThjV8DQAC50owTQUxkyJ78vato0HuX9Edx-OxvBoepr61KknIfCjXKnlZrf-s_L0XFbz_0k8t3c9gmPkaI2vI-ZhzP31jBA`

const ixnRaw2 = `{"v":"KERI10JSON000098_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"3","t":"ixn","p":"ElB_2LYB2i5wus2Dscnmc6e302HK-pgxLIe7iJhftzl0","a":[]}-AADAA18DLkJf2G--KOpRW2aD6ZAXR4koYdj0_OzEfDF5PFP3Y5vx8MSY3UwRBN97AT1pIkDVGqVbBg6nFi-0Bg5RTBQABZq5Kn6sML7NRTEyFKfyHez1YQJ4gzSqGsf1nyOxrXl5h0gwJllyNwTCzQhoyVT2fFAKtt9N_vaP9f90wB2ugCAACLsZcJWVrb1hL7EqL0wuzdtEJOSr-5-7EL0ae_nzvfCO6fw4q0PjgzCgFtoeDbAqUQbhzjfaybDwF9z9MVelWBg`

const outOfOrderRotRaw = `{"v":"KERI10JSON000154_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"4","t":"rot","p":"EacZ-dpgav8rilfpmIDsTvH4vWzc9Tm_3p7Vxjmb7iG0","kt":"2","k":["D4JDgo3WNSUpt-NG14Ni31_GCmrU0r38yo7kgDuyGkQM","DVjWcaNX2gCkHOjk6rkmqPBCxkRCqwIJ-3OjdYmMwxf4","DT1nEDepd6CSAMCE7NY_jlLdG6_mKUlKS_mW-2HJY1hg"],"n":"","bt":"0","br":[],"ba":[],"a":[]}-AADAAt2KPgLzJvXorePSDjHLAStyJG9CakJuGau8QczgtdKPR3JHAOob5wPtTUJD2gHcZXH3wZ6ALM0mZSS6UdocsBwAB50HQHN2JHgj7dNfPQhqiDogbuT5WEx5Mi2Y5cefA6IHgrrQ3WSjZ3Bqai8t5vYfxg_xqcSRJTLkLRNSHZUzMCwACOMQNUmOXYHiHe9cxFie7Yr1y0lJ1tyQEbJnwa1Mr65LmnBIiVuGISDJXy74TZnv0PAnNCJF6TMtltX7nHf7LBw`

func TestProcessEventSequenceMatchesKeripyMultisigDigprefixVectors(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor()

	icp := mustParseSigned(t, icpRaw)
	id := icp.Message.Event.Prefix

	_, err := proc.ProcessEvent(ctx, icp)
	require.NoError(t, err)

	row, ok, err := proc.GetEventAtSn(ctx, id, 0)
	require.NoError(t, err)
	require.True(t, ok)
	reserialized, err := row.SignedEventMessage.Serialize()
	require.NoError(t, err)
	require.Equal(t, icpRaw, string(reserialized))

	_, err = proc.ProcessEvent(ctx, mustParseSigned(t, rotRaw))
	require.NoError(t, err)

	row, ok, err = proc.GetEventAtSn(ctx, id, 1)
	require.NoError(t, err)
	require.True(t, ok)
	reserialized, err = row.SignedEventMessage.Serialize()
	require.NoError(t, err)
	require.Equal(t, rotRaw, string(reserialized))

	// Reprocessing the identical rotation is a duplicate, not a new
	// transition.
	_, err = proc.ProcessEvent(ctx, mustParseSigned(t, rotRaw))
	require.Error(t, err)
	require.True(t, errors.Is(err, kerierr.ErrEventDuplicate))

	ixn := mustParseSigned(t, ixnRaw)
	_, err = proc.ProcessEvent(ctx, ixn)
	require.NoError(t, err)

	row, ok, err = proc.GetEventAtSn(ctx, id, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ixn.Message.Event, row.SignedEventMessage.Message.Event)

	// The ixn at sn 2 doesn't rotate keys, so the last establishment event
	// remains the rot at sn 1.
	rotDigest, err := mustParseSigned(t, rotRaw).Message.Digest()
	require.NoError(t, err)
	lastEst, err := proc.GetLastEstablishmentEventSeal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, lastEst)
	require.Equal(t, uint64(1), lastEst.Sn)
	require.Equal(t, id.Qb64(), lastEst.Prefix.Qb64())
	require.Equal(t, rotDigest.Qb64(), lastEst.EventDigest.Qb64())

	// Keep only the second of the three signatures: below the kt:"2"
	// threshold carried by ixn_raw_2's identifier.
	full := mustParseSigned(t, ixnRaw2)
	require.Len(t, full.Signatures, 3)
	partial := full
	partial.Signatures = full.Signatures[1:2]
	_, err = proc.ProcessEvent(ctx, partial)
	require.Error(t, err)
	require.True(t, errors.Is(err, kerierr.ErrNotEnoughSigs))

	_, ok, err = proc.GetEventAtSn(ctx, id, 3)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = proc.ProcessEvent(ctx, mustParseSigned(t, outOfOrderRotRaw))
	require.Error(t, err)
	require.True(t, errors.Is(err, kerierr.ErrEventOutOfOrder))

	_, ok, err = proc.GetEventAtSn(ctx, id, 4)
	require.NoError(t, err)
	require.False(t, ok)

	kerl, ok, err := proc.GetKERL(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, icpRaw+rotRaw+ixnRaw, string(kerl))
}

// kerlStrSn3 is an icp, three rotations, and an ixn for a single-key basic-
// prefix identifier, concatenated exactly as they appear on the wire.
const kerlStrSn3 = `{"v":"KERI10JSON0000ed_","i":"DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk","s":"0","t":"icp","kt":"1","k":["DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk"],"n":"EGofBtQtAeDMOO3AA4QM0OHxKyGQQ1l2HzBOtrKDnD-o","bt":"0","b":[],"c":[],"a":[]}-AABAAxemWo-mppcRkiGSOXpVwh8CYeTSEJ-a0HDrCkE-TKJ-_76GX-iD7s4sbZ7j5fdfvOuTNyuFw3a797gwpnJ-NAg{"v":"KERI10JSON000122_","i":"DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk","s":"1","t":"rot","p":"EvZY9w3fS1h98tJeysdNQqT70XLLec4oso8kIYjfu2Ks","kt":"1","k":["DLqde_jCw-C3y0fTvXMXX5W7QB0188bMvXVkRcedgTwY"],"n":"EW5MfLjWGOUCIV1tQLKNBu_WFifVK7ksthNDoHP89oOc","bt":"0","br":[],"ba":[],"a":[]}-AABAAuQcoYU04XYzJxOPp4cxmvXbqVpGADfQWqPOzo1S6MajUl1sEWEL1Ry30jNXaV3-izvHRNROYtPm2LIuIimIFDg{"v":"KERI10JSON000122_","i":"DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk","s":"2","t":"rot","p":"EOi_KYKjP4hinuTfgtoYj5QBw_Q1ZrRtWFQDp0qsNuks","kt":"1","k":["De5pKs8wiP9bplyjspW9L62PEANoad-5Kum1uAllRxPY"],"n":"ERKagV0hID1gqZceLsOV3s7MjcoRmCaps2bPBHvVQPEQ","bt":"0","br":[],"ba":[],"a":[]}-AABAAPKIYNAm6nmz4cv37nvn5XMKRVzfKkVpJwMDt2DG-DqTJRCP8ehCeyDFJTdtvdJHjKqrnxE4Lfpll3iUzuQM4Aw{"v":"KERI10JSON000122_","i":"DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk","s":"3","t":"rot","p":"EVK1FbLl7yWTxOzPwk7vo_pQG5AumFoeSE51KapaEymc","kt":"1","k":["D2M5V_e23Pa0IAqqhNDKzZX0kRIMkJyW8_M-gT_Kw9sc"],"n":"EYJkIfnCYcMFVIEi-hMMIjBQfXcTqH_lGIIqMw4LaeOE","bt":"0","br":[],"ba":[],"a":[]}-AABAAsrKFTSuA6tEzqV0C7fEbeiERLdZpStZMCTvgDvzNMfa_Tn26ejFRZ_rDmovoo8xh0dH7SdMQ5B_FvwCx9E98Aw{"v":"KERI10JSON000098_","i":"DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk","s":"4","t":"ixn","p":"EY7VDg-9Gixr9rgH2VyWGvnnoebgTyT9oieHZIaiv2UA","a":[]}-AABAAqHtncya5PNnwSbMRegftJc1y8E4tMZwajVVj2-FmGmp82b2A7pY1vr7cv36m7wPRV5Dusf4BRa5moMlHUpSqDA`

const kerlStrSn3Identifier = "DoQy7bwiYr80qXoISsMdGvfXmCCpZ9PUqetbR8e-fyTk"

func TestComputeStateAtSnMatchesNamedEstablishmentEvent(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor()

	id, err := prefix.ParseIdentifierPrefix(kerlStrSn3Identifier)
	require.NoError(t, err)

	raw := []byte(kerlStrSn3)
	for len(raw) > 0 {
		signed, rest, err := eventmessage.ParseSignedEventMessage(raw)
		require.NoError(t, err)
		_, err = proc.ProcessEvent(ctx, signed)
		require.NoError(t, err)
		raw = rest
	}

	st, err := proc.ComputeStateAtSn(ctx, id, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.Equal(t, uint64(2), st.Sn)
	require.Equal(t, id.Qb64(), st.Prefix.Qb64())

	wantDigest, err := prefix.ParseSelfAddressingPrefix("EVK1FbLl7yWTxOzPwk7vo_pQG5AumFoeSE51KapaEymc")
	require.NoError(t, err)
	require.True(t, wantDigest.VerifyBinding(st.Last))
}

// The remaining scenarios below build their own events with builder rather
// than replaying keripy vectors: their CESR attachment groups ("-FA"
// validator seals, "-GA" source seal couplets) carry an embedded sequence
// number whose field width this package encodes differently than real KERI
// does (DESIGN.md's CESR attachment grammar scope note), so a borrowed
// vector's "-FA"/"-GA" bytes would not round-trip through this codec.

func TestProcessValidatorReceiptRequiresValidatorInceptionFirst(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor()

	ctrlKey, ctrlPriv := genKeyPair(t)
	ctrlNext, _ := genKeyPair(t)
	cb, err := builder.New(builder.Inception)
	require.NoError(t, err)
	cb.WithKeys([]prefix.BasicPrefix{ctrlKey}).WithNextKeys([]prefix.BasicPrefix{ctrlNext})
	ctrlIcp, err := cb.Build()
	require.NoError(t, err)

	ctrlState, err := proc.ProcessEvent(ctx, signEvent(t, ctrlIcp, ctrlPriv, 0))
	require.NoError(t, err)
	require.NotNil(t, ctrlState)

	valKey, valPriv := genKeyPair(t)
	valNext, _ := genKeyPair(t)
	vb, err := builder.New(builder.Inception)
	require.NoError(t, err)
	vb.WithKeys([]prefix.BasicPrefix{valKey}).WithNextKeys([]prefix.BasicPrefix{valNext})
	valIcp, err := vb.Build()
	require.NoError(t, err)

	ctrlCanonical, err := ctrlIcp.Serialize()
	require.NoError(t, err)
	ctrlDigest, err := ctrlIcp.Digest()
	require.NoError(t, err)
	valDigest, err := valIcp.Digest()
	require.NoError(t, err)

	rct := eventmessage.EventMessage{
		Version: ctrlIcp.Version,
		Event: event.Event{
			Prefix: ctrlIcp.Event.Prefix,
			Sn:     0,
			Data:   event.EventData{Ilk: event.IlkRct, Rct: event.ReceiptPayload{EventDigest: ctrlDigest}},
		},
	}
	vrc := eventmessage.SignedTransferableReceipt{
		Receipt:       rct,
		ValidatorSeal: eventmessage.ValidatorSeal{Prefix: valIcp.Event.Prefix, Sn: 0, Digest: valDigest},
		Signatures:    []keyconfig.IndexedSignature{{Index: 0, Signature: ed25519.Sign(valPriv, ctrlCanonical)}},
	}

	hasReceipt, err := proc.HasReceipt(ctx, ctrlIcp.Event.Prefix, 0, valIcp.Event.Prefix)
	require.NoError(t, err)
	require.False(t, hasReceipt)

	// The validator hasn't incepted yet: its KEL has no sn-0 event to
	// check the receipt's signatures against.
	_, err = proc.ProcessValidatorReceipt(ctx, vrc)
	require.Error(t, err)

	hasReceipt, err = proc.HasReceipt(ctx, ctrlIcp.Event.Prefix, 0, valIcp.Event.Prefix)
	require.NoError(t, err)
	require.False(t, hasReceipt)

	_, err = proc.ProcessEvent(ctx, signEvent(t, valIcp, valPriv, 0))
	require.NoError(t, err)

	resultState, err := proc.ProcessValidatorReceipt(ctx, vrc)
	require.NoError(t, err)
	require.Equal(t, *ctrlState, *resultState)

	receipts, ok, err := proc.DB.GetReceiptsT(ctx, ctrlIcp.Event.Prefix)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, receipts, 1)

	hasReceipt, err = proc.HasReceipt(ctx, ctrlIcp.Event.Prefix, 0, valIcp.Event.Prefix)
	require.NoError(t, err)
	require.True(t, hasReceipt)
}

func TestProcessDelegatedInceptionAndRotationRequireAnchoringEvent(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor()

	delegatorKey, delegatorPriv := genKeyPair(t)
	delegatorNext, _ := genKeyPair(t)
	delegatorB, err := builder.New(builder.Inception)
	require.NoError(t, err)
	delegatorB.WithKeys([]prefix.BasicPrefix{delegatorKey}).WithNextKeys([]prefix.BasicPrefix{delegatorNext})
	delegatorIcp, err := delegatorB.Build()
	require.NoError(t, err)
	delegatorPrefix := delegatorIcp.Event.Prefix

	_, err = proc.ProcessEvent(ctx, signEvent(t, delegatorIcp, delegatorPriv, 0))
	require.NoError(t, err)
	delegatorIcpDigest, err := delegatorIcp.Digest()
	require.NoError(t, err)

	delegateKey, delegatePriv := genKeyPair(t)
	delegateNext, delegateNextPriv := genKeyPair(t)
	dipB, err := builder.New(builder.DelegatedInception)
	require.NoError(t, err)
	dipB.WithKeys([]prefix.BasicPrefix{delegateKey}).WithNextKeys([]prefix.BasicPrefix{delegateNext}).WithDelegator(delegatorPrefix)
	dip, err := dipB.Build()
	require.NoError(t, err)
	dipDigest, err := dip.Digest()
	require.NoError(t, err)

	ixnB, err := builder.New(builder.Interaction)
	require.NoError(t, err)
	ixnB.WithPrefix(delegatorPrefix).WithSn(1).WithPreviousEvent(delegatorIcpDigest).
		WithSeal(seal.NewEventSeal(seal.EventSeal{Prefix: dip.Event.Prefix, Sn: 0, EventDigest: dipDigest}))
	anchoringIxn, err := ixnB.Build()
	require.NoError(t, err)
	ixnDigest, err := anchoringIxn.Digest()
	require.NoError(t, err)

	dipSigned := signEvent(t, dip, delegatePriv, 0)
	dipSigned.SourceSeals = []eventmessage.SourceSealCouplet{{Sn: 1, Digest: ixnDigest}}

	// dip arrives before the delegator's anchoring ixn: no sn-1 event yet
	// to validate the seal against.
	_, err = proc.ProcessEvent(ctx, dipSigned)
	require.Error(t, err)
	require.True(t, errors.Is(err, kerierr.ErrEventOutOfOrder))

	_, err = proc.ProcessEvent(ctx, signEvent(t, anchoringIxn, delegatorPriv, 0))
	require.NoError(t, err)

	dipState, err := proc.ProcessEvent(ctx, dipSigned)
	require.NoError(t, err)
	require.NotNil(t, dipState)
	require.Equal(t, delegatorPrefix.Qb64(), dipState.Delegator.Qb64())

	// The drt reveals the next key the dip committed to.
	rotatedNext, _ := genKeyPair(t)
	drtB, err := builder.New(builder.DelegatedRotation)
	require.NoError(t, err)
	drtB.WithPrefix(dip.Event.Prefix).WithSn(1).WithPreviousEvent(dipDigest).
		WithKeys([]prefix.BasicPrefix{delegateNext}).WithNextKeys([]prefix.BasicPrefix{rotatedNext})
	drt, err := drtB.Build()
	require.NoError(t, err)
	drtDigest, err := drt.Digest()
	require.NoError(t, err)

	ixn2B, err := builder.New(builder.Interaction)
	require.NoError(t, err)
	ixn2B.WithPrefix(delegatorPrefix).WithSn(2).WithPreviousEvent(ixnDigest).
		WithSeal(seal.NewEventSeal(seal.EventSeal{Prefix: dip.Event.Prefix, Sn: 1, EventDigest: drtDigest}))
	anchoringIxn2, err := ixn2B.Build()
	require.NoError(t, err)
	ixn2Digest, err := anchoringIxn2.Digest()
	require.NoError(t, err)

	drtSigned := signEvent(t, drt, delegateNextPriv, 0)
	drtSigned.SourceSeals = []eventmessage.SourceSealCouplet{{Sn: 2, Digest: ixn2Digest}}

	// drt arrives before its own anchoring ixn: same out-of-order rejection.
	_, err = proc.ProcessEvent(ctx, drtSigned)
	require.Error(t, err)
	require.True(t, errors.Is(err, kerierr.ErrEventOutOfOrder))

	_, err = proc.ProcessEvent(ctx, signEvent(t, anchoringIxn2, delegatorPriv, 0))
	require.NoError(t, err)

	drtState, err := proc.ProcessEvent(ctx, drtSigned)
	require.NoError(t, err)
	require.NotNil(t, drtState)
	require.Equal(t, delegatorPrefix.Qb64(), drtState.Delegator.Qb64())
	require.Len(t, drtState.Current.PublicKeys, 1)
	require.Equal(t, delegateNext.Qb64(), drtState.Current.PublicKeys[0].Qb64())
}
