package eventmessage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/henkvancann/keriox/event"
	"github.com/henkvancann/keriox/kerierr"
	"github.com/henkvancann/keriox/keyconfig"
	"github.com/henkvancann/keriox/prefix"
	"github.com/henkvancann/keriox/seal"
)

// ParseVersionString decodes a "KERI10JSON00014b_"-shaped version string.
func ParseVersionString(s string) (Version, error) {
	if len(s) != versionStringLen {
		return Version{}, fmt.Errorf("%w: malformed version string %q", kerierr.ErrSemantic, s)
	}
	if s[:6] != protocolTag || s[len(s)-1] != '_' {
		return Version{}, fmt.Errorf("%w: malformed version string %q", kerierr.ErrSemantic, s)
	}
	ser := Serialization(s[6:10])
	if ser != SerializationJSON && ser != SerializationCBOR {
		return Version{}, fmt.Errorf("%w: unsupported serialization %q", kerierr.ErrSemantic, ser)
	}
	size, err := strconv.ParseInt(s[10:16], 16, 64)
	if err != nil {
		return Version{}, fmt.Errorf("%w: malformed version size: %v", kerierr.ErrSemantic, err)
	}
	return Version{Protocol: protocolTag, Serialization: ser, Size: int(size)}, nil
}

// Deserialized is the result of parsing one event body off the front of a
// byte stream: the decoded message and the raw bytes it was carried in
// (the exact span Digest()/signature verification must run over), plus
// whatever bytes followed it in the input.
type Deserialized struct {
	Message   EventMessage
	Raw       []byte
	Remainder []byte
}

// ParseEventMessageJSON decodes one JSON event body off the front of raw —
// tolerant of field order on the way in, even though Serialize always
// writes fields back out in the fixed order the wire expects. Only as many
// bytes as the single top-level JSON object occupies are consumed; any
// following bytes (signature attachments, or the next concatenated event in
// a KEL stream) are returned as Remainder.
func ParseEventMessageJSON(raw []byte) (Deserialized, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return Deserialized{}, fmt.Errorf("%w: decoding event body: %v", kerierr.ErrSemantic, err)
	}
	offset := dec.InputOffset()
	body := raw[:offset]
	remainder := raw[offset:]

	em, err := buildEventMessage(obj)
	if err != nil {
		return Deserialized{}, err
	}
	return Deserialized{Message: em, Raw: body, Remainder: remainder}, nil
}

func field(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := obj[key]
	return v, ok
}

func jsonAsString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: expected JSON string: %v", kerierr.ErrSemantic, err)
	}
	return s, nil
}

func jsonAsHexSn(raw json.RawMessage) (uint64, error) {
	s, err := jsonAsString(raw)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	sn, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed sequence number %q: %v", kerierr.ErrSemantic, s, err)
	}
	return sn, nil
}

func jsonAsBasicPrefixArray(raw json.RawMessage) ([]prefix.BasicPrefix, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("%w: expected JSON string array: %v", kerierr.ErrSemantic, err)
	}
	out := make([]prefix.BasicPrefix, len(ss))
	for i, s := range ss {
		bp, err := prefix.ParseBasicPrefix(s)
		if err != nil {
			return nil, err
		}
		out[i] = bp
	}
	return out, nil
}

func jsonAsStringArray(raw json.RawMessage) ([]string, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("%w: expected JSON string array: %v", kerierr.ErrSemantic, err)
	}
	return ss, nil
}

func jsonAsSelfAddressing(raw json.RawMessage) (prefix.SelfAddressingPrefix, error) {
	s, err := jsonAsString(raw)
	if err != nil {
		return prefix.SelfAddressingPrefix{}, err
	}
	return prefix.ParseSelfAddressingPrefix(s)
}

func jsonAsIdentifierPrefix(raw json.RawMessage) (prefix.IdentifierPrefix, error) {
	s, err := jsonAsString(raw)
	if err != nil {
		return prefix.IdentifierPrefix{}, err
	}
	return prefix.ParseIdentifierPrefix(s)
}

// parseThreshold decodes the "kt" field: either a decimal-string Simple
// threshold, or a JSON array of fraction strings for a Weighted one.
func parseThreshold(raw json.RawMessage) (keyconfig.SignatureThreshold, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var parts []string
		if err := json.Unmarshal(raw, &parts); err != nil {
			return keyconfig.SignatureThreshold{}, fmt.Errorf("%w: malformed weighted threshold: %v", kerierr.ErrSemantic, err)
		}
		weights := make([]*big.Rat, len(parts))
		for i, p := range parts {
			r := new(big.Rat)
			if _, ok := r.SetString(p); !ok {
				return keyconfig.SignatureThreshold{}, fmt.Errorf("%w: malformed threshold weight %q", kerierr.ErrSemantic, p)
			}
			weights[i] = r
		}
		return keyconfig.NewWeightedThreshold(weights), nil
	}
	s, err := jsonAsString(raw)
	if err != nil {
		return keyconfig.SignatureThreshold{}, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return keyconfig.SignatureThreshold{}, fmt.Errorf("%w: malformed simple threshold %q: %v", kerierr.ErrSemantic, s, err)
	}
	return keyconfig.NewSimpleThreshold(n), nil
}

func parseWitnessConfig(obj map[string]json.RawMessage, witnessesKey, removedKey, addedKey string) (event.WitnessConfig, error) {
	wc := event.WitnessConfig{}
	if raw, ok := field(obj, "bt"); ok {
		s, err := jsonAsString(raw)
		if err != nil {
			return wc, err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return wc, fmt.Errorf("%w: malformed witness threshold %q: %v", kerierr.ErrSemantic, s, err)
		}
		wc.Threshold = n
	}
	if raw, ok := field(obj, witnessesKey); ok {
		bps, err := jsonAsBasicPrefixArray(raw)
		if err != nil {
			return wc, err
		}
		wc.Witnesses = bps
	}
	if removedKey != "" {
		if raw, ok := field(obj, removedKey); ok {
			bps, err := jsonAsBasicPrefixArray(raw)
			if err != nil {
				return wc, err
			}
			wc.Removed = bps
		}
	}
	if addedKey != "" {
		if raw, ok := field(obj, addedKey); ok {
			bps, err := jsonAsBasicPrefixArray(raw)
			if err != nil {
				return wc, err
			}
			wc.Added = bps
		}
	}
	return wc, nil
}

func parseKeyConfig(obj map[string]json.RawMessage) (keyconfig.KeyConfig, error) {
	ktRaw, ok := field(obj, "kt")
	if !ok {
		return keyconfig.KeyConfig{}, fmt.Errorf("%w: missing kt field", kerierr.ErrSemantic)
	}
	threshold, err := parseThreshold(ktRaw)
	if err != nil {
		return keyconfig.KeyConfig{}, err
	}
	kRaw, ok := field(obj, "k")
	if !ok {
		return keyconfig.KeyConfig{}, fmt.Errorf("%w: missing k field", kerierr.ErrSemantic)
	}
	keys, err := jsonAsBasicPrefixArray(kRaw)
	if err != nil {
		return keyconfig.KeyConfig{}, err
	}
	var next prefix.SelfAddressingPrefix
	if nRaw, ok := field(obj, "n"); ok {
		next, err = jsonAsSelfAddressing(nRaw)
		if err != nil {
			return keyconfig.KeyConfig{}, err
		}
	}
	return keyconfig.KeyConfig{PublicKeys: keys, Threshold: threshold, NextKeyDigest: next}, nil
}

func parseSeals(raw json.RawMessage) ([]seal.Seal, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: malformed seal array: %v", kerierr.ErrSemantic, err)
	}
	out := make([]seal.Seal, len(items))
	for idx, item := range items {
		switch {
		case has(item, "i") && has(item, "s") && has(item, "d"):
			ip, err := jsonAsIdentifierPrefix(item["i"])
			if err != nil {
				return nil, err
			}
			sn, err := jsonAsHexSn(item["s"])
			if err != nil {
				return nil, err
			}
			d, err := jsonAsSelfAddressing(item["d"])
			if err != nil {
				return nil, err
			}
			out[idx] = seal.NewEventSeal(seal.EventSeal{Prefix: ip, Sn: sn, EventDigest: d})
		case has(item, "i") && has(item, "s") && has(item, "t") && has(item, "p"):
			ip, err := jsonAsIdentifierPrefix(item["i"])
			if err != nil {
				return nil, err
			}
			sn, err := jsonAsHexSn(item["s"])
			if err != nil {
				return nil, err
			}
			ilk, err := jsonAsString(item["t"])
			if err != nil {
				return nil, err
			}
			pd, err := jsonAsSelfAddressing(item["p"])
			if err != nil {
				return nil, err
			}
			out[idx] = seal.NewLocationSeal(seal.LocationSeal{Prefix: ip, Sn: sn, Ilk: ilk, PriorDigest: pd})
		case has(item, "rd"):
			d, err := jsonAsSelfAddressing(item["rd"])
			if err != nil {
				return nil, err
			}
			out[idx] = seal.NewRootSeal(d)
		case has(item, "d"):
			d, err := jsonAsSelfAddressing(item["d"])
			if err != nil {
				return nil, err
			}
			out[idx] = seal.NewDigestSeal(d)
		default:
			return nil, fmt.Errorf("%w: unrecognized seal shape", kerierr.ErrSemantic)
		}
	}
	return out, nil
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func buildEventMessage(obj map[string]json.RawMessage) (EventMessage, error) {
	vRaw, ok := field(obj, "v")
	if !ok {
		return EventMessage{}, fmt.Errorf("%w: missing v field", kerierr.ErrSemantic)
	}
	vStr, err := jsonAsString(vRaw)
	if err != nil {
		return EventMessage{}, err
	}
	version, err := ParseVersionString(vStr)
	if err != nil {
		return EventMessage{}, err
	}

	iRaw, ok := field(obj, "i")
	if !ok {
		return EventMessage{}, fmt.Errorf("%w: missing i field", kerierr.ErrSemantic)
	}
	ip, err := jsonAsIdentifierPrefix(iRaw)
	if err != nil {
		return EventMessage{}, err
	}

	sRaw, ok := field(obj, "s")
	if !ok {
		return EventMessage{}, fmt.Errorf("%w: missing s field", kerierr.ErrSemantic)
	}
	sn, err := jsonAsHexSn(sRaw)
	if err != nil {
		return EventMessage{}, err
	}

	tRaw, ok := field(obj, "t")
	if !ok {
		return EventMessage{}, fmt.Errorf("%w: missing t field", kerierr.ErrSemantic)
	}
	tStr, err := jsonAsString(tRaw)
	if err != nil {
		return EventMessage{}, err
	}
	ilk := event.Ilk(strings.ToLower(tStr))

	data := event.EventData{Ilk: ilk}
	switch ilk {
	case event.IlkIcp:
		kc, err := parseKeyConfig(obj)
		if err != nil {
			return EventMessage{}, err
		}
		wc, err := parseWitnessConfig(obj, "b", "", "")
		if err != nil {
			return EventMessage{}, err
		}
		var cfg []string
		if cRaw, ok := field(obj, "c"); ok {
			cfg, err = jsonAsStringArray(cRaw)
			if err != nil {
				return EventMessage{}, err
			}
		}
		data.Icp = event.InceptionPayload{KeyConfig: kc, Witnesses: wc, Config: cfg}
	case event.IlkRot:
		kc, err := parseKeyConfig(obj)
		if err != nil {
			return EventMessage{}, err
		}
		wc, err := parseWitnessConfig(obj, "", "br", "ba")
		if err != nil {
			return EventMessage{}, err
		}
		pRaw, ok := field(obj, "p")
		if !ok {
			return EventMessage{}, fmt.Errorf("%w: missing p field", kerierr.ErrSemantic)
		}
		prev, err := jsonAsSelfAddressing(pRaw)
		if err != nil {
			return EventMessage{}, err
		}
		var seals []seal.Seal
		if aRaw, ok := field(obj, "a"); ok {
			seals, err = parseSeals(aRaw)
			if err != nil {
				return EventMessage{}, err
			}
		}
		data.Rot = event.RotationPayload{PreviousEventHash: prev, KeyConfig: kc, Witnesses: wc, Data: seals}
	case event.IlkIxn:
		pRaw, ok := field(obj, "p")
		if !ok {
			return EventMessage{}, fmt.Errorf("%w: missing p field", kerierr.ErrSemantic)
		}
		prev, err := jsonAsSelfAddressing(pRaw)
		if err != nil {
			return EventMessage{}, err
		}
		var seals []seal.Seal
		if aRaw, ok := field(obj, "a"); ok {
			seals, err = parseSeals(aRaw)
			if err != nil {
				return EventMessage{}, err
			}
		}
		data.Ixn = event.InteractionPayload{PreviousEventHash: prev, Data: seals}
	case event.IlkDip:
		kc, err := parseKeyConfig(obj)
		if err != nil {
			return EventMessage{}, err
		}
		wc, err := parseWitnessConfig(obj, "b", "", "")
		if err != nil {
			return EventMessage{}, err
		}
		var cfg []string
		if cRaw, ok := field(obj, "c"); ok {
			cfg, err = jsonAsStringArray(cRaw)
			if err != nil {
				return EventMessage{}, err
			}
		}
		diRaw, ok := field(obj, "di")
		if !ok {
			return EventMessage{}, fmt.Errorf("%w: missing di field", kerierr.ErrSemantic)
		}
		delegator, err := jsonAsIdentifierPrefix(diRaw)
		if err != nil {
			return EventMessage{}, err
		}
		data.Dip = event.DelegatedInceptionPayload{
			Inception: event.InceptionPayload{KeyConfig: kc, Witnesses: wc, Config: cfg},
			Delegator: delegator,
		}
	case event.IlkDrt:
		kc, err := parseKeyConfig(obj)
		if err != nil {
			return EventMessage{}, err
		}
		wc, err := parseWitnessConfig(obj, "", "br", "ba")
		if err != nil {
			return EventMessage{}, err
		}
		pRaw, ok := field(obj, "p")
		if !ok {
			return EventMessage{}, fmt.Errorf("%w: missing p field", kerierr.ErrSemantic)
		}
		prev, err := jsonAsSelfAddressing(pRaw)
		if err != nil {
			return EventMessage{}, err
		}
		var seals []seal.Seal
		if aRaw, ok := field(obj, "a"); ok {
			seals, err = parseSeals(aRaw)
			if err != nil {
				return EventMessage{}, err
			}
		}
		data.Drt = event.DelegatedRotationPayload{Rotation: event.RotationPayload{
			PreviousEventHash: prev, KeyConfig: kc, Witnesses: wc, Data: seals,
		}}
	case event.IlkRct:
		dRaw, ok := field(obj, "d")
		if !ok {
			return EventMessage{}, fmt.Errorf("%w: missing d field", kerierr.ErrSemantic)
		}
		d, err := jsonAsSelfAddressing(dRaw)
		if err != nil {
			return EventMessage{}, err
		}
		data.Rct = event.ReceiptPayload{EventDigest: d}
	default:
		return EventMessage{}, fmt.Errorf("%w: unrecognized event ilk %q", kerierr.ErrSemantic, tStr)
	}

	return EventMessage{
		Version: version,
		Event:   event.Event{Prefix: ip, Sn: sn, Data: data},
	}, nil
}
