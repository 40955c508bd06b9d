package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"fleetconsole.org/livemap/internal/telemetry"
)

// EnvelopeKind tags the wrapper shapes a telemetry backend may put around
// its payload.
type EnvelopeKind int

const (
	// Direct is an unwrapped payload: an array of records or a single record.
	Direct EnvelopeKind = iota
	// OkDataEnvelope is {"ok": bool, "data": payload}.
	OkDataEnvelope
	// KeyValueEnvelope is {"key": string, "value": payload} (key optional),
	// where value is frequently the payload JSON-encoded a second time.
	KeyValueEnvelope
)

func (k EnvelopeKind) String() string {
	switch k {
	case OkDataEnvelope:
		return "ok_data"
	case KeyValueEnvelope:
		return "key_value"
	default:
		return "direct"
	}
}

// Envelope is one layer of a backend response.
type Envelope struct {
	Kind    EnvelopeKind
	OK      bool
	Key     string
	Payload any
}

var (
	ErrNotOK         = errors.New("backend reported ok=false")
	ErrInnerDecode   = errors.New("envelope value is not valid JSON")
	ErrTooManyLayers = errors.New("envelope nesting too deep")
)

// maxLayers bounds Unwrap against payloads that keep re-encoding themselves.
const maxLayers = 8

// Classify inspects one layer without unwrapping it.
func Classify(v any) Envelope {
	obj, ok := v.(map[string]any)
	if !ok {
		return Envelope{Kind: Direct, Payload: v}
	}
	if data, hasData := obj["data"]; hasData {
		if okVal, hasOK := obj["ok"]; hasOK {
			flag, _ := okVal.(bool)
			return Envelope{Kind: OkDataEnvelope, OK: flag, Payload: data}
		}
	}
	if value, hasValue := obj["value"]; hasValue && isKeyValueShape(obj) {
		k, _ := obj["key"].(string)
		return Envelope{Kind: KeyValueEnvelope, Key: k, Payload: value}
	}
	return Envelope{Kind: Direct, Payload: v}
}

// isKeyValueShape rejects telemetry records that merely happen to carry a
// "value" field: a key/value envelope has nothing besides key and value.
func isKeyValueShape(obj map[string]any) bool {
	for k := range obj {
		if k != "key" && k != "value" {
			return false
		}
	}
	return true
}

// Unwrap peels envelopes until the payload is Direct. A string inside a
// key/value envelope is decoded as JSON; if that fails the whole response
// is unusable.
func Unwrap(v any) (any, error) {
	cur := v
	for i := 0; i < maxLayers; i++ {
		env := Classify(cur)
		switch env.Kind {
		case Direct:
			return env.Payload, nil
		case OkDataEnvelope:
			if !env.OK {
				return nil, ErrNotOK
			}
			cur = env.Payload
		case KeyValueEnvelope:
			s, isString := env.Payload.(string)
			if !isString {
				cur = env.Payload
				continue
			}
			decoded, err := decodeJSON([]byte(s))
			if err != nil {
				return nil, fmt.Errorf("%w: key %q: %v", ErrInnerDecode, env.Key, err)
			}
			cur = decoded
		}
	}
	return nil, ErrTooManyLayers
}

// Records coerces a direct payload into raw records. Arrays keep only their
// object elements; a single object becomes a one-element slice; anything
// else yields an empty, non-nil slice.
func Records(payload any) []telemetry.RawRecord {
	switch p := payload.(type) {
	case []any:
		out := make([]telemetry.RawRecord, 0, len(p))
		for _, item := range p {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, telemetry.RawRecord(obj))
			}
		}
		return out
	case map[string]any:
		return []telemetry.RawRecord{telemetry.RawRecord(p)}
	}
	return []telemetry.RawRecord{}
}

// decodeJSON keeps numbers as json.Number so device identifiers survive intact.
func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}
