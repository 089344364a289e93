package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/redis"
)

// RedisAuditSink appends audit events to a capped Redis stream
type RedisAuditSink struct {
	client *redisclient.Client
	stream string
	maxLen int64
}

// NewRedisAuditSink creates an audit sink writing to stream. maxLen <= 0
// leaves the stream uncapped.
func NewRedisAuditSink(client *redisclient.Client, stream string, maxLen int64) providers.AuditSink {
	return &RedisAuditSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Record appends one event to the stream
func (s *RedisAuditSink) Record(ctx context.Context, event providers.AuditEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"integration_id": event.IntegrationID,
			"data_type":      string(event.DataType),
			"identifier":     event.Identifier,
			"payload":        payload,
			"created_at":     event.CreatedAt.UnixMilli(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.Client().XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
