// Package offers holds the ephemeral per-patient conversation state: the
// numbered list of appointment slots a patient was last sent and may still
// reply to. An offer is replaced wholesale by any newer offer, cleared when a
// booking consumes it, and otherwise expires on its own.
package offers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Slot is a candidate appointment not yet persisted: a calendar date
// ("2006-01-02"), a clock-time string as the patient will see it, and an
// optional reason. SourceID carries the id of an AVAILABLE placeholder row
// when the slot came from the schedule rather than an ad-hoc broadcast.
type Slot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Reason   string `json:"reason,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

// Store is the conversation-state contract: Offer replaces, Get reads,
// Clear removes. Slots are 1-indexed from the patient's point of view.
type Store interface {
	// Offer replaces any existing offer for the patient in full.
	// Last-writer-wins; there is no merge.
	Offer(ctx context.Context, patientID uuid.UUID, slots []Slot) error
	// Get returns the live offer, or nil when the patient has none.
	Get(ctx context.Context, patientID uuid.UUID) ([]Slot, error)
	Clear(ctx context.Context, patientID uuid.UUID) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps one JSON value per patient under offer:{id}. A plain
// SET is an atomic replace and DEL is the clear, so the replace-not-merge
// semantics need no transaction. TTL bounds how long an unanswered offer
// stays bookable.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func offerKey(patientID uuid.UUID) string {
	return fmt.Sprintf("offer:%s", patientID.String())
}

func (s *redisStore) Offer(ctx context.Context, patientID uuid.UUID, slots []Slot) error {
	if len(slots) == 0 {
		return s.Clear(ctx, patientID)
	}

	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}
	if err := s.client.Set(ctx, offerKey(patientID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist offer: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, patientID uuid.UUID) ([]Slot, error) {
	data, err := s.client.Get(ctx, offerKey(patientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load offer: %w", err)
	}

	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	return slots, nil
}

func (s *redisStore) Clear(ctx context.Context, patientID uuid.UUID) error {
	if err := s.client.Del(ctx, offerKey(patientID)).Err(); err != nil {
		return fmt.Errorf("clear offer: %w", err)
	}
	return nil
}
