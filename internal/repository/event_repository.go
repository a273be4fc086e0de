package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// EventRepository publishes ledger events on a Redis pub/sub channel.
type EventRepository struct {
	client  *redis.Client
	channel string
}

// NewEventRepository constructs the publisher.
func NewEventRepository(client *redis.Client, channel string) *EventRepository {
	return &EventRepository{client: client, channel: channel}
}

// Publish sends the event as JSON and returns the number of subscribers that received it.
func (r *EventRepository) Publish(ctx context.Context, event models.LedgerEvent) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	if r.channel == "" {
		return 0, fmt.Errorf("publish %s: empty channel", event.ID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	receivers, err := r.client.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish event %s to %s: %w", event.ID, r.channel, err)
	}
	return receivers, nil
}
