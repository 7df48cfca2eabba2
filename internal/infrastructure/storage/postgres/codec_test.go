package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func TestPayloadCodec(t *testing.T) {
	codec, err := NewPayloadCodec(64)
	require.NoError(t, err)
	defer codec.Close()

	tests := []struct {
		name     string
		in       samplePayload
		encoding PayloadEncoding
	}{
		{"small payload stays plain json", samplePayload{Description: "short", Amount: "-45.00"}, EncodingJSON},
		{"large payload is compressed", samplePayload{Description: strings.Repeat("correction ", 50), Amount: "-45.00"}, EncodingZstdJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, encoding, err := codec.Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, encoding)

			var out samplePayload
			require.NoError(t, codec.Decode(payload, encoding, &out))
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestPayloadEncodingValues(t *testing.T) {
	// stored in sys_outbox.encoding and checked by the table constraint
	assert.Equal(t, "json", string(EncodingJSON))
	assert.Equal(t, "zstd+json", string(EncodingZstdJSON))
}

func TestPayloadCodec_UnknownEncoding(t *testing.T) {
	codec, err := NewPayloadCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	var out samplePayload
	assert.Error(t, codec.Decode([]byte(`{}`), "lz4", &out))
}
