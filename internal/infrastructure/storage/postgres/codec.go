package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// PayloadEncoding tells how an outbox payload is stored. The values are
// pinned by a CHECK constraint on sys_outbox.encoding.
type PayloadEncoding string

const (
	EncodingJSON     PayloadEncoding = "json"
	EncodingZstdJSON PayloadEncoding = "zstd+json"
)

// defaultCompressThreshold is the payload size above which zstd is applied.
const defaultCompressThreshold = 10 * 1024

// PayloadCodec marshals outbox payloads to JSON and compresses large ones.
// It is safe for concurrent use.
type PayloadCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewPayloadCodec creates a codec; threshold <= 0 selects 10KB.
func NewPayloadCodec(threshold int) (*PayloadCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = defaultCompressThreshold
	}
	return &PayloadCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode marshals v and compresses the result when it exceeds the threshold.
func (c *PayloadCodec) Encode(v any) ([]byte, PayloadEncoding, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	if len(raw) <= c.threshold {
		return raw, EncodingJSON, nil
	}
	return c.encoder.EncodeAll(raw, nil), EncodingZstdJSON, nil
}

// Decode reverses Encode into v.
func (c *PayloadCodec) Decode(payload []byte, encoding PayloadEncoding, v any) error {
	switch encoding {
	case EncodingJSON, "":
	case EncodingZstdJSON:
		raw, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("decompress payload: %w", err)
		}
		payload = raw
	default:
		return fmt.Errorf("unknown payload encoding %q", encoding)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// Close releases the encoder and decoder.
func (c *PayloadCodec) Close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
