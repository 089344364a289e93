package erpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	"github.com/zatekoja/erpbridge/backend/pkg/retry"
)

const (
	// DefaultRetryCooldown is the wait before replaying a reset connection
	DefaultRetryCooldown = 10 * time.Second

	defaultAuditTimeout = 5 * time.Second
)

// ResilientClient decorates a Sender with one replay after a connection
// reset and mirrors every payload to an audit sink.
type ResilientClient struct {
	next         Sender
	audit        providers.AuditSink
	metrics      *observability.Metrics
	cooldown     time.Duration
	auditTimeout time.Duration
}

// Option configures a ResilientClient
type Option func(*ResilientClient)

// WithCooldown overrides the wait before the replay
func WithCooldown(d time.Duration) Option {
	return func(c *ResilientClient) { c.cooldown = d }
}

// WithMetrics records retries on m
func WithMetrics(m *observability.Metrics) Option {
	return func(c *ResilientClient) { c.metrics = m }
}

// WithAuditTimeout bounds each background audit write
func WithAuditTimeout(d time.Duration) Option {
	return func(c *ResilientClient) { c.auditTimeout = d }
}

// NewResilientClient wraps next. audit may be nil.
func NewResilientClient(next Sender, audit providers.AuditSink, opts ...Option) *ResilientClient {
	c := &ResilientClient{
		next:         next,
		audit:        audit,
		cooldown:     DefaultRetryCooldown,
		auditTimeout: defaultAuditTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type auditedRequest struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Payload any    `json:"payload,omitempty"`
	Write   bool   `json:"write"`
	Attempt int    `json:"attempt"`
}

// Send forwards req to the wrapped Sender. Only a connection reset is
// replayed, once, after the cooldown; any other error is returned as is.
// When the replay fails too, the reset is returned with the replay error
// attached.
func (c *ResilientClient) Send(ctx context.Context, integration *entities.Integration, req Request) (*Response, error) {
	ctx, correlationID := ensureCorrelationID(ctx)
	logger := observability.LoggerFromContext(ctx).With().
		Str("integration_id", integration.ID).
		Str("correlation_id", correlationID).
		Str("path", req.Path).
		Logger()

	cfg := retry.Config{MaxAttempts: 2, InitialDelay: c.cooldown}

	var (
		resp     *Response
		firstErr error
		attempts int
	)
	err := retry.DoIf(ctx, cfg, IsConnectionReset, func(attempt int) error {
		attempts = attempt
		if attempt > 1 {
			logger.Warn().Int("attempt", attempt).Dur("cooldown", c.cooldown).Msg("Replaying ERP request after connection reset")
			c.metrics.RecordERPRetry(ctx, integration.ID)
		}
		c.mirror(ctx, integration.ID, providers.AuditDataTypeRequest, correlationID, auditedRequest{
			Method:  req.Method,
			Path:    req.Path,
			Payload: req.Payload,
			Write:   req.Write,
			Attempt: attempt,
		})

		r, err := c.next.Send(ctx, integration, req)
		if err != nil {
			if attempt == 1 {
				firstErr = err
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil && attempts > 1 {
		err = fmt.Errorf("%w (replay failed: %w)", firstErr, err)
	}
	if err != nil {
		c.mirror(ctx, integration.ID, providers.AuditDataTypeError, correlationID, map[string]any{
			"path":  req.Path,
			"error": err.Error(),
		})
		return nil, err
	}

	c.mirror(ctx, integration.ID, providers.AuditDataTypeResponse, correlationID, resp)
	return resp, nil
}

// mirror records the event in the background. It never blocks the caller
// and never surfaces an error.
func (c *ResilientClient) mirror(ctx context.Context, integrationID string, dataType providers.AuditDataType, identifier string, payload any) {
	if c.audit == nil {
		return
	}
	event := providers.AuditEvent{
		IntegrationID: integrationID,
		DataType:      dataType,
		Identifier:    identifier,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
	bgCtx := context.WithoutCancel(ctx)

	go func() {
		logger := observability.LoggerFromContext(bgCtx)
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("Audit sink panicked")
			}
		}()

		auditCtx, cancel := context.WithTimeout(bgCtx, c.auditTimeout)
		defer cancel()
		if err := c.audit.Record(auditCtx, event); err != nil {
			logger.Warn().Err(err).Str("integration_id", integrationID).Str("data_type", string(dataType)).Msg("Failed to record audit event")
		}
	}()
}
