package providers

import (
	"context"
	"time"
)

// AuditDataType tags what an audit event mirrors
type AuditDataType string

const (
	AuditDataTypeRequest  AuditDataType = "erp_request"
	AuditDataTypeResponse AuditDataType = "erp_response"
	AuditDataTypeError    AuditDataType = "erp_error"
	AuditDataTypeChunk    AuditDataType = "availability_chunk_failure"
)

// AuditEvent is one mirrored payload
type AuditEvent struct {
	IntegrationID string        `json:"integrationId"`
	DataType      AuditDataType `json:"dataType"`
	Identifier    string        `json:"identifier"`
	Payload       any           `json:"payload,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// AuditSink records audit events. Callers treat failures as non-fatal.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}
