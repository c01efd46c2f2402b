package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// StreamsEventBus implements EventBus using Redis Streams.
//
// With an empty consumer group every subscriber reads the stream from "$"
// and sees every new event (fan-out, used by WebSocket progress streams).
// With a consumer group, subscribers share the stream and acknowledge messages.
type StreamsEventBus struct {
	client        redis.UniversalClient
	logger        *zap.Logger
	prefix        string
	maxLen        int64
	consumerGroup string
	consumerName  string
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client redis.UniversalClient, prefix string, maxLen int64, consumerGroup, consumerName string, logger *zap.Logger) *StreamsEventBus {
	return &StreamsEventBus{
		client:        client,
		logger:        logger,
		prefix:        prefix,
		maxLen:        maxLen,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
	}
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := e.streamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("job_id", event.JobID),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is cancelled
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := e.streamKey(topic)

	if e.consumerGroup == "" {
		go e.fanOut(ctx, streamKey, handler)
		e.logger.Debug("subscribed to event stream",
			zap.String("stream", streamKey))
		return nil
	}

	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	go e.readGroup(ctx, streamKey, handler)

	return nil
}

// fanOut reads new entries with XREAD starting at "$"
func (e *StreamsEventBus) fanOut(ctx context.Context, streamKey string, handler ports.EventHandler) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Count:   50,
			Block:   time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				_ = e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// readGroup reads events for a consumer group
func (e *StreamsEventBus) readGroup(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    e.consumerGroup,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				if err := e.processMessage(ctx, streamKey, message, handler); err != nil {
					continue
				}
				if err := e.client.XAck(ctx, streamKey, e.consumerGroup, message.ID).Err(); err != nil {
					e.logger.Error("failed to acknowledge message",
						zap.String("stream", streamKey),
						zap.String("message_id", message.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// processMessage decodes a stream entry and hands it to handler
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) error {
	event, err := decodeMessage(message)
	if err != nil {
		e.logger.Error("invalid message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return err
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return err
	}
	return nil
}

func decodeMessage(message redis.XMessage) (domain.Event, error) {
	var event domain.Event

	data, ok := message.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// Close is a no-op; the Redis client is closed by its owner
func (e *StreamsEventBus) Close() error {
	return nil
}

func (e *StreamsEventBus) streamKey(topic string) string {
	return fmt.Sprintf("%s:events:%s", e.prefix, topic)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
