package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
)

const defaultResyncLimit = 200

type eventLister interface {
	ListPublishedAfter(ctx context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]models.OutboxEvent, error)
}

// Resync replays published events after a given sequence so a reconnecting
// client can close a detected gap instead of continuing with stale state.
type Resync struct {
	repo eventLister
}

func NewResync(repo eventLister) (*Resync, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return &Resync{repo: repo}, nil
}

// EventsAfter returns the tenant's published events with sequence greater
// than afterSeq, in sequence order, converted to stream frames.
func (r *Resync) EventsAfter(ctx context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]Event, error) {
	if tenantID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "tenant id is required")
	}
	if afterSeq < 0 {
		return nil, errors.New(errors.CodeValidation, "after_seq must not be negative")
	}
	if limit <= 0 || limit > defaultResyncLimit {
		limit = defaultResyncLimit
	}

	rows, err := r.repo.ListPublishedAfter(ctx, tenantID, afterSeq, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to list published events")
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		if row.Sequence == nil {
			continue
		}
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "failed to decode event payload")
		}
		events = append(events, Event{
			Sequence:   *row.Sequence,
			TenantID:   row.TenantID,
			EventType:  string(row.EventType),
			OccurredAt: envelope.OccurredAt,
			Data:       envelope.Data,
		})
	}
	return events, nil
}
