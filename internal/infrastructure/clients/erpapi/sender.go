package erpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// HeaderCorrelationID carries the per-call trace id to the ERP
const HeaderCorrelationID = "X-Correlation-ID"

// Request is one outbound ERP call
type Request struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Payload any    `json:"payload,omitempty"`
	// Write marks calls that change ERP state (create, confirm, cancel).
	Write bool `json:"write"`
}

// Response is the unwrapped ERP envelope
type Response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the envelope data into out
func (r *Response) Decode(out any) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

// Sender sends one request to an integration's ERP
type Sender interface {
	Send(ctx context.Context, integration *entities.Integration, req Request) (*Response, error)
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation id to ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id attached to ctx
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func ensureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return WithCorrelationID(ctx, id), id
}

// IsConnectionReset reports whether err is the transient transport failure
// that earns one replay.
func IsConnectionReset(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "ECONNRESET")
}
