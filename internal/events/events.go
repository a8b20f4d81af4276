package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Type string

const (
	UserActivated         Type = "user.activated"
	ReferralBonusCredited Type = "referral.bonus_credited"
	WithdrawalRequested   Type = "withdrawal.requested"
	WithdrawalApproved    Type = "withdrawal.approved"
	WithdrawalRejected    Type = "withdrawal.rejected"
	TaskSubmitted         Type = "task.submitted"
	TaskApproved          Type = "task.approved"
	TaskRejected          Type = "task.rejected"
)

// Event is a committed state change that external processes (payouts, notifications)
// may act on.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	UserID     int64             `json:"user_id"`
	EntityID   int64             `json:"entity_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, userID, entityID int64, attrs map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		EntityID:   entityID,
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events after the transaction that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no stream is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher appends events to a Redis stream, trimmed to roughly maxLen entries.
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(rdb *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":      e.ID,
			"type":    string(e.Type),
			"payload": string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append event %s to %s: %w", e.Type, p.stream, err)
	}
	return nil
}
