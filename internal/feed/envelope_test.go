package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	v, err := decodeJSON([]byte(s))
	require.NoError(t, err)
	return v
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want EnvelopeKind
	}{
		{"array", `[{"lat":1}]`, Direct},
		{"plain record", `{"lat":1,"lng":2}`, Direct},
		{"ok data", `{"ok":true,"data":[]}`, OkDataEnvelope},
		{"ok data with message", `{"ok":false,"data":null,"message":"down"}`, OkDataEnvelope},
		{"key value", `{"key":"live","value":"[]"}`, KeyValueEnvelope},
		{"value only", `{"value":"[]"}`, KeyValueEnvelope},
		{"record with value field", `{"value":3,"lat":1,"lng":2}`, Direct},
		{"data without ok", `{"data":[]}`, Direct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(mustDecode(t, tt.in)).Kind)
		})
	}
}

func TestUnwrap(t *testing.T) {
	t.Run("ok data then double encoded value", func(t *testing.T) {
		payload, err := Unwrap(mustDecode(t, `{"ok":true,"data":{"value":"[{\"lat\":1,\"lng\":2}]"}}`))
		require.NoError(t, err)

		records := Records(payload)
		require.Len(t, records, 1)
		assert.Equal(t, json.Number("1"), records[0]["lat"])
		assert.Equal(t, json.Number("2"), records[0]["lng"])
	})

	t.Run("key value with object value", func(t *testing.T) {
		payload, err := Unwrap(mustDecode(t, `{"key":"live","value":{"lat":1,"lng":2}}`))
		require.NoError(t, err)
		assert.Len(t, Records(payload), 1)
	})

	t.Run("direct payload is returned as is", func(t *testing.T) {
		payload, err := Unwrap(mustDecode(t, `[{"lat":1,"lng":2},{"lat":3,"lng":4}]`))
		require.NoError(t, err)
		assert.Len(t, Records(payload), 2)
	})

	t.Run("unparsable inner value", func(t *testing.T) {
		_, err := Unwrap(mustDecode(t, `{"ok":true,"data":{"key":"live","value":"[{not json"}}`))
		assert.ErrorIs(t, err, ErrInnerDecode)
	})

	t.Run("not ok", func(t *testing.T) {
		_, err := Unwrap(mustDecode(t, `{"ok":false,"data":[{"lat":1,"lng":2}]}`))
		assert.ErrorIs(t, err, ErrNotOK)
	})

	t.Run("self re-encoding payload stops", func(t *testing.T) {
		inner := `{"value":"x"}`
		for i := 0; i < maxLayers+1; i++ {
			b, _ := json.Marshal(inner)
			inner = `{"value":` + string(b) + `}`
		}
		_, err := Unwrap(mustDecode(t, inner))
		assert.Error(t, err)
	})
}

func TestRecords(t *testing.T) {
	assert.Len(t, Records(map[string]any{"lat": 1.0}), 1)
	assert.Len(t, Records([]any{map[string]any{}, "junk", 3.0}), 1)

	empty := Records("scalar")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.Empty(t, Records(nil))
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	_, err := decodeJSON([]byte(`[1] [2]`))
	assert.Error(t, err)

	_, err = decodeJSON([]byte("[1]\n"))
	assert.NoError(t, err)
}
