package hub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
)

const (
	receiveBackoffBase = time.Second
	receiveBackoffCap  = 16 * time.Second
	receiveMaxRetries  = 5
)

type broadcaster interface {
	Publish(tenantID uuid.UUID, event Event) int
}

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

const bridgeConsumerName = "stream-bridge"

// Bridge consumes published domain events and fans them into the hub. The
// order state machine never calls the hub directly; every event travels
// outbox, Pub/Sub, bridge, hub.
type Bridge struct {
	hub          broadcaster
	subscription *pubsub.Subscriber
	dedupe       deduper
	logg         *logger.Logger
}

// NewBridge builds the Pub/Sub to hub bridge. Delivery is at-least-once, so
// the deduper suppresses redelivered events before fan-out.
func NewBridge(hub broadcaster, subscription *pubsub.Subscriber, dedupe deduper, logg *logger.Logger) (*Bridge, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("events subscription required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Bridge{
		hub:          hub,
		subscription: subscription,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled. A failed
// Receive is restarted with exponential backoff, abandoning after five
// consecutive failures so a broken subscription surfaces instead of
// retrying forever silently.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := retry.WithMaxRetries(receiveMaxRetries,
		retry.WithCappedDuration(receiveBackoffCap, retry.NewExponential(receiveBackoffBase)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := b.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			b.process(ctx, msg)
			// Fan-out is best effort and in-memory; redelivery would
			// only replay stale frames, so malformed messages are
			// acked too.
			msg.Ack()
		})
		if err == nil || stderrors.Is(err, context.Canceled) {
			return err
		}
		b.logg.Error(ctx, "events subscription receive failed, retrying", err)
		return retry.RetryableError(err)
	})
}

func (b *Bridge) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := b.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		b.logg.Info(logCtx, "skipping unsupported event type")
		return false
	}

	tenantID, err := uuid.Parse(msg.Attributes["tenant_id"])
	if err != nil {
		b.logg.Error(logCtx, "message missing tenant_id attribute", err)
		return false
	}

	sequence, err := strconv.ParseInt(msg.Attributes["sequence"], 10, 64)
	if err != nil {
		b.logg.Error(logCtx, "message missing sequence attribute", err)
		return false
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		b.logg.Error(logCtx, "failed to decode envelope", err)
		return false
	}

	if eventID, err := uuid.Parse(envelope.EventID); err != nil {
		b.logg.Error(logCtx, "envelope missing event id", err)
		return false
	} else if b.dedupe != nil {
		already, err := b.dedupe.CheckAndMarkProcessed(logCtx, bridgeConsumerName, eventID)
		if err != nil {
			// Fail open: a duplicate frame is harmless since clients
			// track their last seen sequence.
			b.logg.Error(logCtx, "idempotency check failed, fanning out anyway", err)
		} else if already {
			b.logg.Info(logCtx, "skipping already delivered event")
			return false
		}
	}

	delivered := b.hub.Publish(tenantID, Event{
		Sequence:   sequence,
		TenantID:   tenantID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
		Data:       envelope.Data,
	})

	b.logg.Info(b.logg.WithFields(logCtx, map[string]any{
		"tenant_id": tenantID.String(),
		"sequence":  sequence,
		"delivered": delivered,
	}), "event fanned out to stream connections")
	return true
}
