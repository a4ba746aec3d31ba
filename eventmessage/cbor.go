package eventmessage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encodeCBORObject renders fields as a CBOR map, in the same field order
// used for JSON (not map-key-sorted — KERI's CBOR body mirrors its JSON
// body field-for-field). Each field's JSON-rendered value is decoded
// generically and then re-encoded as CBOR; nested seal objects use
// fxamacker/cbor's core deterministic (key-sorted) map encoding, which is
// deterministic even though it does not preserve the JSON field order at
// that nesting depth.
func encodeCBORObject(fields []kv) ([]byte, error) {
	header, err := mapHeader(len(fields))
	if err != nil {
		return nil, err
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	buf := append([]byte{}, header...)
	for _, f := range fields {
		var v interface{}
		if err := json.Unmarshal(f.Raw, &v); err != nil {
			return nil, fmt.Errorf("eventmessage: decoding field %q for cbor: %w", f.Key, err)
		}
		keyBytes, err := enc.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		valBytes, err := enc.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, valBytes...)
	}
	return buf, nil
}

// mapHeader renders the CBOR major-type-5 (map) header for n entries. Event
// bodies never carry more than a handful of fields, so only the
// single-byte and one-byte-count forms are needed.
func mapHeader(n int) ([]byte, error) {
	switch {
	case n < 24:
		return []byte{0xA0 | byte(n)}, nil
	case n < 256:
		return []byte{0xB8, byte(n)}, nil
	default:
		return nil, fmt.Errorf("eventmessage: too many fields for cbor map header: %d", n)
	}
}
