package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProvisioningStream carries provisioning work items. Consumer groups give
// at-least-once delivery; an unacked message is invisible to its group until
// reclaimed, which is the queue's lease/visibility-timeout mechanism.
const ProvisioningStream = "provisioning:tasks"

// Message is one delivered work item.
type Message struct {
	// ID is the stream message ID used for acknowledgement.
	ID             string
	TaskID         string
	SubscriptionID string
	Attempt        int
}

type QueueProducer struct {
	client *redis.Client
}

func NewQueueProducer(client *redis.Client) *QueueProducer {
	return &QueueProducer{client: client}
}

// Publish appends a work item to the stream.
func (p *QueueProducer) Publish(ctx context.Context, taskID, subscriptionID string, attempt int) error {
	args := &redis.XAddArgs{
		Stream: ProvisioningStream,
		Values: map[string]any{
			"task_id":         taskID,
			"subscription_id": subscriptionID,
			"attempt":         attempt,
			"timestamp":       time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish provisioning task: %w", err)
	}
	return nil
}

type QueueConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewQueueConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *QueueConsumer {
	return &QueueConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *QueueConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read blocks for new deliveries assigned to this consumer.
func (c *QueueConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var msgs []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msgs = append(msgs, decodeMessage(raw))
		}
	}
	return msgs, nil
}

// Ack acknowledges a processed delivery, removing it from the pending list.
func (c *QueueConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Reclaim transfers deliveries idle longer than minIdle to this consumer.
// This is how work abandoned by a crashed consumer becomes visible again.
func (c *QueueConsumer) Reclaim(ctx context.Context, minIdle time.Duration) ([]Message, error) {
	raw, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim messages: %w", err)
	}

	msgs := make([]Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, decodeMessage(m))
	}
	return msgs, nil
}

func decodeMessage(raw redis.XMessage) Message {
	msg := Message{ID: raw.ID}
	if v, ok := raw.Values["task_id"].(string); ok {
		msg.TaskID = v
	}
	if v, ok := raw.Values["subscription_id"].(string); ok {
		msg.SubscriptionID = v
	}
	switch v := raw.Values["attempt"].(type) {
	case string:
		msg.Attempt, _ = strconv.Atoi(v)
	case int64:
		msg.Attempt = int(v)
	}
	return msg
}
