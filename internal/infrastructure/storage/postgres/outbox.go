package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	appctx "spcledger/internal/core/context"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/ledger"
	"spcledger/pkg/logger"
)

const outboxTable = "sys_outbox"

// Outbox event of a detected retroactive cost correction.
const (
	AggregateQuantityMovement = "quantity_movement"
	EventCostCorrection       = "quantity.cost_correction_detected"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is a row of the transactional outbox.
type OutboxMessage struct {
	ID            id.ID           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   id.ID           `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       []byte          `db:"payload"`
	Encoding      PayloadEncoding `db:"encoding"`
	Status        OutboxStatus    `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}

var (
	outboxColumns = DBColumns[OutboxMessage]()

	// Columns without a database default.
	outboxInsertColumns = []string{
		"id", "aggregate_type", "aggregate_id", "event_type", "payload", "encoding", "status", "created_at",
	}
)

// OutboxPublisher writes cost corrections to the outbox in the caller's
// transaction, so they commit together with the movement that caused them.
type OutboxPublisher struct {
	txm     *TxManager
	codec   *PayloadCodec
	builder squirrel.StatementBuilderType
}

var _ ledger.CorrectionSink = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates an outbox publisher.
func NewOutboxPublisher(txm *TxManager, codec *PayloadCodec) *OutboxPublisher {
	return &OutboxPublisher{
		txm:     txm,
		codec:   codec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// PublishCorrections implements ledger.CorrectionSink. One message is written
// per correction, keyed by the issue movement.
func (p *OutboxPublisher) PublishCorrections(ctx context.Context, corrections []entity.CostCorrection) error {
	if len(corrections) == 0 {
		return nil
	}
	if p.txm.GetTx(ctx) == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	query, args, err := p.insertCorrections(corrections, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := p.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox messages: %w", err)
	}
	return nil
}

func (p *OutboxPublisher) insertCorrections(corrections []entity.CostCorrection, now time.Time) (string, []any, error) {
	q := p.builder.Insert(outboxTable).Columns(outboxInsertColumns...)
	for i := range corrections {
		payload, encoding, err := p.codec.Encode(corrections[i])
		if err != nil {
			return "", nil, err
		}
		msg := OutboxMessage{
			ID:            id.New(),
			AggregateType: AggregateQuantityMovement,
			AggregateID:   corrections[i].MovementID,
			EventType:     EventCostCorrection,
			Payload:       payload,
			Encoding:      encoding,
			Status:        OutboxStatusPending,
			CreatedAt:     now,
		}
		q = q.Values(DBValues(&msg, outboxInsertColumns)...)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build outbox insert: %w", err)
	}
	return query, args, nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// CorrectionHandlerFunc receives the decoded correction of a message.
type CorrectionHandlerFunc func(ctx context.Context, correction entity.CostCorrection) error

// CorrectionHandler decodes cost correction messages for fn. Messages of other
// event types are acknowledged without a call.
type CorrectionHandler struct {
	codec *PayloadCodec
	fn    CorrectionHandlerFunc
}

// NewCorrectionHandler creates a handler for cost correction messages.
func NewCorrectionHandler(codec *PayloadCodec, fn CorrectionHandlerFunc) *CorrectionHandler {
	return &CorrectionHandler{codec: codec, fn: fn}
}

// Handle implements OutboxHandler.
func (h *CorrectionHandler) Handle(ctx context.Context, msg *OutboxMessage) error {
	if msg.EventType != EventCostCorrection {
		return nil
	}
	var c entity.CostCorrection
	if err := h.codec.Decode(msg.Payload, msg.Encoding, &c); err != nil {
		return err
	}
	return h.fn(ctx, c)
}

// OutboxRelay hands pending messages to a handler. Several relays may run
// concurrently: rows are claimed with FOR UPDATE SKIP LOCKED.
type OutboxRelay struct {
	txm        *TxManager
	batchSize  int
	maxRetries int
	handler    OutboxHandler
	builder    squirrel.StatementBuilderType
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txm *TxManager, batchSize, maxRetries int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxRelay{
		txm:        txm,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		handler:    handler,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *OutboxRelay) claimQuery(now time.Time) (string, []any, error) {
	return r.builder.Select(outboxColumns...).
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at", "id").
		Limit(uint64(r.batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
}

// ProcessBatch claims and processes one batch of pending messages and returns
// the number handled successfully.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		query, args, err := r.claimQuery(now)
		if err != nil {
			return fmt.Errorf("build claim query: %w", err)
		}

		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &messages, query, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.processMessage(ctx, msg, now); err != nil {
				return err
			}
			if msg.Status == OutboxStatusPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// processMessage runs the handler and records the outcome on the row. Only a
// failure to update the row is returned.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage, now time.Time) error {
	q := r.txm.GetQuerier(ctx)

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		retries := msg.RetryCount + 1
		status := OutboxStatusPending
		if retries >= r.maxRetries {
			status = OutboxStatusFailed
		}
		nextRetry := now.Add(time.Duration(retries) * time.Minute)
		logger.Warn(ctx, "outbox message failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"retry", retries,
			"status", status,
			"error", handleErr,
		)

		query, args, err := r.builder.Update(outboxTable).
			Set("retry_count", retries).
			Set("last_error", handleErr.Error()).
			Set("next_retry_at", nextRetry).
			Set("status", status).
			Where(squirrel.Eq{"id": msg.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build outbox update: %w", err)
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		msg.Status = status
		return nil
	}

	query, args, err := r.builder.Update(outboxTable).
		Set("status", OutboxStatusPublished).
		Set("published_at", now).
		Where(squirrel.Eq{"id": msg.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox update: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark message published: %w", err)
	}
	msg.Status = OutboxStatusPublished
	return nil
}

// Run polls for pending messages every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		passCtx := appctx.WithTrace(ctx, appctx.NewJobTrace(appctx.OriginOutbox))
		for {
			n, err := r.ProcessBatch(passCtx)
			if err != nil {
				logger.Error(passCtx, "outbox relay batch failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
