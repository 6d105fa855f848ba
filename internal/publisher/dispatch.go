package publisher

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	"github.com/firmasegura/certifications-backend/pkg/outbox/registry"
)

type verdict int

const (
	published verdict = iota
	retry
	deadLetter
)

// delivery is the outcome of one publish attempt, applied to the row by settle.
type delivery struct {
	event   models.OutboxEvent
	topic   string
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
}

// drain publishes one locked batch and returns how many rows it settled.
func (r *Relay) drain(ctx context.Context) (int, error) {
	settled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			if err := r.settle(ctx, tx, r.deliver(ctx, row)); err != nil {
				return err
			}
			settled++
		}
		return nil
	})
	return settled, err
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	d := delivery{event: row}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		d.verdict, d.reason, d.err = deadLetter, enums.OutboxDLQReasonNonRetryable, err
		return d
	}
	d.topic = resolved.Descriptor.Topic

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := r.sender.Send(sendCtx, d.topic, newMessage(row, resolved.Envelope)); err != nil {
		var permanent registry.NonRetryableError
		switch {
		case errors.As(err, &permanent):
			d.verdict, d.reason, d.err = deadLetter, enums.OutboxDLQReasonNonRetryable, err
		case row.AttemptCount+1 >= r.maxAttempts:
			d.verdict, d.reason = deadLetter, enums.OutboxDLQReasonMaxAttempts
			d.err = fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
		default:
			d.verdict, d.err = retry, err
		}
		return d
	}
	d.verdict = published
	return d
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	id := d.event.ID
	eventType := string(d.event.EventType)
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     id.String(),
		"event_type":    eventType,
		"aggregate_id":  d.event.AggregateID.String(),
		"attempt_count": d.event.AttemptCount,
		"topic":         d.topic,
	})

	switch d.verdict {
	case published:
		if err := r.events.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark %s published: %w", id, err)
		}
		r.metrics.IncPublished(eventType)
		r.logg.Debug(logCtx, "outbox event published")

	case retry:
		if err := r.events.MarkFailedTx(tx, id, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", id, err)
		}
		r.metrics.IncFailed(eventType)
		r.logg.Warn(r.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed, will retry")

	case deadLetter:
		msg := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       id,
			EventType:     d.event.EventType,
			AggregateType: d.event.AggregateType,
			AggregateID:   d.event.AggregateID,
			Payload:       d.event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &msg,
			AttemptCount:  d.event.AttemptCount,
			FailedAt:      r.now(),
		}
		if err := r.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("dead-letter %s: %w", id, err)
		}
		if err := r.events.MarkTerminalTx(tx, id, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark %s terminal: %w", id, err)
		}
		r.metrics.IncDeadLettered(eventType, string(d.reason))
		r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
			"error_reason": d.reason,
			"error":        msg,
		}), "outbox event dead-lettered")
	}
	return nil
}
