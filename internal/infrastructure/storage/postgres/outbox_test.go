package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

func TestOutboxPublisher_InsertCorrections(t *testing.T) {
	codec, err := NewPayloadCodec(0)
	require.NoError(t, err)
	defer codec.Close()
	p := NewOutboxPublisher(nil, codec)

	corrections := []entity.CostCorrection{
		{MovementID: id.New(), CorrectionAmount: types.MustMoney("-45.00")},
		{MovementID: id.New(), CorrectionAmount: types.MustMoney("12.10")},
	}
	query, args, err := p.insertCorrections(corrections, time.Now())
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO sys_outbox")
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")
	require.Len(t, args, 16)
	assert.Equal(t, corrections[0].MovementID, args[2])
	assert.Equal(t, EventCostCorrection, args[3])
	assert.Equal(t, EncodingJSON, args[5])

	var decoded entity.CostCorrection
	require.NoError(t, codec.Decode(args[4].([]byte), EncodingJSON, &decoded))
	assert.True(t, decoded.CorrectionAmount.Equal(types.MustMoney("-45")))
}

func TestOutboxRelay_ClaimQuery(t *testing.T) {
	r := NewOutboxRelay(nil, 0, 0, nil)
	assert.Equal(t, 100, r.batchSize)
	assert.Equal(t, 5, r.maxRetries)

	query, args, err := r.claimQuery(time.Now())
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)")
	assert.Contains(t, query, "ORDER BY created_at, id LIMIT 100 FOR UPDATE SKIP LOCKED")
	assert.Equal(t, OutboxStatusPending, args[0])
}

func TestCorrectionHandler(t *testing.T) {
	codec, err := NewPayloadCodec(0)
	require.NoError(t, err)
	defer codec.Close()

	want := entity.CostCorrection{MovementID: id.New(), CorrectionAmount: types.MustMoney("-45")}
	payload, encoding, err := codec.Encode(want)
	require.NoError(t, err)

	var got []entity.CostCorrection
	h := NewCorrectionHandler(codec, func(_ context.Context, c entity.CostCorrection) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, h.Handle(context.Background(), &OutboxMessage{EventType: "other", Payload: []byte("ignored")}))
	require.NoError(t, h.Handle(context.Background(), &OutboxMessage{EventType: EventCostCorrection, Payload: payload, Encoding: encoding}))
	require.Len(t, got, 1)
	assert.Equal(t, want.MovementID, got[0].MovementID)

	failing := NewCorrectionHandler(codec, func(context.Context, entity.CostCorrection) error { return errors.New("down") })
	assert.Error(t, failing.Handle(context.Background(), &OutboxMessage{EventType: EventCostCorrection, Payload: payload, Encoding: encoding}))
}
