package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/config"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
	"github.com/angelmondragon/premiumvideo-backend/pkg/metrics"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	idleBackoffCap = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type DispatcherParams struct {
	Config      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Broker      func(context.Context) error
	Outbox      outboxStore
	DeadLetters deadLetterStore
	Events      eventResolver
	Topics      topicResolver
	Metrics     *metrics.OutboxMetrics
}

// Dispatcher drains outbox_events to Pub/Sub. Every row ends up published,
// scheduled for retry with last_error set, or copied to outbox_dlq.
type Dispatcher struct {
	logg        *logger.Logger
	db          txRunner
	broker      func(context.Context) error
	outbox      outboxStore
	deadLetters deadLetterStore
	events      eventResolver
	topics      topicResolver
	metrics     *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewDispatcher(p DispatcherParams) (*Dispatcher, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Outbox == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case p.Events == nil:
		return nil, errors.New("event registry is required")
	case p.Topics == nil:
		return nil, errors.New("topic resolver is required")
	}

	d := &Dispatcher{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		outbox:      p.Outbox,
		deadLetters: p.DeadLetters,
		events:      p.Events,
		topics:      p.Topics,
		metrics:     p.Metrics,
		batchSize:   orDefault(p.Config.BatchSize, 50),
		maxAttempts: orDefault(p.Config.MaxAttempts, 10),
		poll:        time.Duration(orDefault(p.Config.PollIntervalMS, 500)) * time.Millisecond,
	}
	return d, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx is cancelled. Idle polls and failed batches back off
// exponentially up to idleBackoffCap.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if d.broker != nil {
		if err := d.broker(ctx); err != nil {
			return fmt.Errorf("pubsub ping failed: %w", err)
		}
	}

	wait := d.poll
	for {
		n, err := d.dispatchBatch(ctx)
		switch {
		case err != nil:
			d.logg.Error(ctx, "outbox.batch.failed", err)
			wait = min(wait*2, idleBackoffCap)
		case n > 0:
			wait = d.poll
			continue
		default:
			wait = d.poll
		}

		timer := time.NewTimer(wait + rand.N(jitterWindow))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// dispatchBatch claims up to batchSize rows in one transaction and settles
// each of them before commit. It returns the number of rows claimed.
func (d *Dispatcher) dispatchBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.outbox.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		d.metrics.ObserveBatch(claimed)
		for _, row := range rows {
			if err := d.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (d *Dispatcher) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	rowCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := d.events.Resolve(row)
	if err != nil {
		return d.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	rowCtx = d.logg.WithField(rowCtx, "topic", resolved.Descriptor.Topic)

	pubErr := d.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := d.outbox.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		d.metrics.IncDispatched(string(row.EventType), metrics.OutcomePublished)
		d.logg.Info(rowCtx, "outbox.event.published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return d.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if row.AttemptCount+1 >= d.maxAttempts {
		return d.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, pubErr))
	}

	if err := d.outbox.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	d.metrics.IncDispatched(string(row.EventType), metrics.OutcomeRetried)
	d.logg.Warn(d.logg.WithField(rowCtx, "error", pubErr.Error()), "outbox.event.retry")
	return nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := d.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := d.outbox.MarkTerminalTx(tx, row.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	d.metrics.IncDispatched(string(row.EventType), metrics.OutcomeDeadLettered)
	d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
		"error_reason": string(reason),
		"error":        msg,
	}), "outbox.event.dead_lettered")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := d.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	// order_created consumers key on the order so redeliveries stay ordered.
	if row.AggregateType == enums.AggregateOrder {
		msg.OrderingKey = row.AggregateID.String()
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(pubCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(pubCtx)
	return err
}
