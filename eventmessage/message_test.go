package eventmessage_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/eventmessage"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

// These byte strings are taken verbatim from a real KERI key event log
// (inception EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8), each a JSON
// event body immediately followed by its "-AAD"-style indexed-signature
// attachment with no separator.
const icpRaw = `{"v":"KERI10JSON00014b_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"0","t":"icp","kt":"2","k":["DSuhyBcPZEZLK-fcw5tzHn2N46wRCG_ZOoeKtWTOunRA","DVcuJOOJF1IE8svqEtrSuyQjGTd2HhfAkt9y2QkUtFJI","DT1iAhBWCkvChxNWsby2J0pJyxBIxbAtbLA0Ljx-Grh8"],"n":"E9izzBkXX76sqt0N-tfLzJeRqj0W56p4pDQ_ZqNCDpyw","bt":"0","b":[],"c":[],"a":[]}-AADAAhcaP-l0DkIKlJ87iIVcDx-m0iKPdSArEu63b-2cSEn9wXVGNpWw9nfwxodQ9G8J3q_Pm-AWfDwZGD9fobWuHBAAB6mz7zP0xFNBEBfSKG4mjpPbeOXktaIyX8mfsEa1A3Psf7eKxSrJ5Woj3iUB2AhhLg412-zkk795qxsK2xfdxBAACj5wdW-EyUJNgW0LHePQcSFNxW3ZyPregL4H2FoOrsPxLa3MZx6xYTh6i7YRMGY50ezEjV81hkI1Yce75M_bPCQ`

const rotRaw = `{"v":"KERI10JSON000180_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"1","t":"rot","p":"ElIKmVhsgDtxLhFqsWPASdq9J2slLqG-Oiov0rEG4s-w","kt":"2","k":["DKPE5eeJRzkRTMOoRGVd2m18o8fLqM2j9kaxLhV3x8AQ","D1kcBE7h0ImWW6_Sp7MQxGYSshZZz6XM7OiUE5DXm0dU","D4JDgo3WNSUpt-NG14Ni31_GCmrU0r38yo7kgDuyGkQM"],"n":"EQpRYqbID2rW8X5lB6mOzDckJEIFae6NbJISXgJSN9qg","bt":"0","br":[],"ba":[],"a":[]}-AADAAOA7_2NfORAD7hnavnFDhIQ_1fX1zVjNzFLYLOqW4mLdmNlE4745-o75wtaPX1Reg27YP0lgrCFW_3Evz9ebNAQAB6CJhTEANFN8fAFEdxwbnllsUd3jBTZHeeR-KiYe0yjCdOhbEnTLKTpvwei9QsAP0z3xc6jKjUNJ6PoxNnmD7AQAC4YfEq1tZPteXlH2cLOMjOAxqygRgbDsFRvjEQCHQva1K4YsS3ErQjuKd5Z57Uac-aDaRjeH8KdSSDvtNshIyBw`

const ixnRaw = `{"v":"KERI10JSON000098_","i":"EsiHneigxgDopAidk_dmHuiUJR3kAaeqpgOAj9ZZd4q8","s":"2","t":"ixn","p":"EFLtKYQZIoCFdSEjP7D5OgqElY2WwFB5vQD0Uvtp4RmI","a":[]}-AADAAip7QM2tvcyC4vbSX4A4avT03hHrJTTlkjQujOZRMroRL897wojcI4DIyxejOqsZcjrZHlU4S3RLYGmVbDEoPDgAB3NZj06_KCwxdTdIgCMETTHVJQa5AB8-dtqoD7ltaFIQxmC2K_ESp6DFLOrGQ2xTr97a-By1beM66YyBThjV8DQAC50owTQUxkyJ78vato0HuX9Edx-OxvBoepr61KknIfCjXKnlZrf-s_L0XFbz_0k8t3c9gmPkaI2vI-ZhzP31jBA`

// TestParseSignedEventMessageReproducesCanonicalBytes golden-byte-compares
// each vector's JSON body against what this package re-serializes, using
// gotest.tools/v3 rather than testify: a deliberate round-trip check
// against fixed external bytes reads more naturally as a cmp.Equal
// assertion than as a require.Equal call.
func TestParseSignedEventMessageReproducesCanonicalBytes(t *testing.T) {
	for _, raw := range []string{icpRaw, rotRaw, ixnRaw} {
		sm, rest, err := eventmessage.ParseSignedEventMessage([]byte(raw))
		assert.NilError(t, err)
		assert.Equal(t, len(rest), 0)

		reSerialized, err := sm.Message.Serialize()
		assert.NilError(t, err)

		// The attachment starts at the first "-A" after the JSON body closes.
		bodyLen := len(reSerialized)
		assert.Assert(t, cmp.Equal(raw[:bodyLen], string(reSerialized)))
		assert.Equal(t, raw[bodyLen], byte('-'))
	}
}

func TestParseSignedEventMessageSignatureIndices(t *testing.T) {
	sm, _, err := eventmessage.ParseSignedEventMessage([]byte(icpRaw))
	require.NoError(t, err)
	require.Len(t, sm.Signatures, 3)
	for i, sig := range sm.Signatures {
		require.Equal(t, i, sig.Index)
		require.Len(t, sig.Signature, 64)
	}
}

// TestInceptionPrefixBindsToOwnDigest exercises self-addressing prefix
// derivation and verification round-trip on freshly built material, not the
// borrowed icpRaw vector, and checks that changing the event afterwards
// breaks the binding. (The state and processor tests apply icpRaw itself,
// which verifies its "i" field under the same derivation.)
func TestInceptionPrefixBindsToOwnDigest(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kc := keyconfig.KeyConfig{
		PublicKeys: []prefix.BasicPrefix{prefix.DeriveEd25519Basic(pub)},
		Threshold:  keyconfig.NewSimpleThreshold(1),
	}
	draft := eventmessage.EventMessage{
		Version: eventmessage.Version{Serialization: eventmessage.SerializationJSON},
		Event: event.Event{
			Sn:   0,
			Data: event.EventData{Ilk: event.IlkIcp, Icp: event.InceptionPayload{KeyConfig: kc}},
		},
	}

	_, final, err := draft.DeriveSelfAddressingPrefix()
	require.NoError(t, err)
	require.True(t, final.VerifySelfAddressingPrefix())

	tampered := final
	tampered.Event.Sn = 1
	require.False(t, tampered.VerifySelfAddressingPrefix())
}

func TestKELConcatenationReproducesExactBytes(t *testing.T) {
	icp, restICP, err := eventmessage.ParseSignedEventMessage([]byte(icpRaw))
	require.NoError(t, err)
	require.Empty(t, restICP)
	rot, restROT, err := eventmessage.ParseSignedEventMessage([]byte(rotRaw))
	require.NoError(t, err)
	require.Empty(t, restROT)
	ixn, restIXN, err := eventmessage.ParseSignedEventMessage([]byte(ixnRaw))
	require.NoError(t, err)
	require.Empty(t, restIXN)

	// The rot event's previous-event hash must equal the digest of the icp
	// event that precedes it; ditto ixn against rot. This is the hash-chain
	// invariant the processor leans on to reject out-of-order events.
	icpDigest, err := icp.Message.Digest()
	require.NoError(t, err)
	rotPrev, ok := rot.Message.Event.Data.PreviousEventHash()
	require.True(t, ok)
	require.Equal(t, icpDigest.Qb64(), rotPrev.Qb64())

	rotDigest, err := rot.Message.Digest()
	require.NoError(t, err)
	ixnPrev, ok := ixn.Message.Event.Data.PreviousEventHash()
	require.True(t, ok)
	require.Equal(t, rotDigest.Qb64(), ixnPrev.Qb64())
}
