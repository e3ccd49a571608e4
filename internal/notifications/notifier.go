// Package notifications fans review decisions out to operators in real time.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"buspass/internal/models"
	"buspass/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ReviewChannel is the Redis channel review decisions are published on.
const ReviewChannel = "buspass:reviews"

// Review event types.
const (
	EventApplicationSubmitted = "application_submitted"
	EventApplicationApproved  = "application_approved"
	EventApplicationRejected  = "application_rejected"
)

// ReviewEvent is the payload published for each lifecycle change.
type ReviewEvent struct {
	Type            string                   `json:"type"`
	ApplicationNo   string                   `json:"application_no"`
	Status          models.ApplicationStatus `json:"status"`
	RejectionReason models.RejectionReason   `json:"rejection_reason,omitempty"`
	OperatorID      uint                     `json:"operator_id,omitempty"`
	OccurredAt      time.Time                `json:"occurred_at"`
}

// EventForRecord builds the event describing rec's current state.
func EventForRecord(rec *models.ApplicationRecord, operatorID uint) ReviewEvent {
	ev := ReviewEvent{
		ApplicationNo:   rec.ApplicationNo,
		Status:          rec.Status,
		RejectionReason: rec.RejectionReason,
		OperatorID:      operatorID,
		OccurredAt:      time.Now().UTC(),
	}
	switch rec.Status {
	case models.StatusApproved:
		ev.Type = EventApplicationApproved
	case models.StatusRejected:
		ev.Type = EventApplicationRejected
	default:
		ev.Type = EventApplicationSubmitted
	}
	return ev
}

// Notifier publishes review events into Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishReviewEvent is a no-op without Redis.
func (n *Notifier) PublishReviewEvent(ctx context.Context, ev ReviewEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal review event: %w", err)
	}
	return n.rdb.Publish(ctx, ReviewChannel, payload).Err()
}

// StartReviewSubscriber subscribes to ReviewChannel and calls onEvent for each
// decoded event until ctx is cancelled. It returns once the subscription is live.
func (n *Notifier) StartReviewSubscriber(ctx context.Context, onEvent func(ReviewEvent)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ReviewChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", ReviewChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ReviewEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					observability.GlobalLogger.WarnContext(ctx, "dropping malformed review event",
						slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.ErrorContext(ctx, "panic in review subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}
