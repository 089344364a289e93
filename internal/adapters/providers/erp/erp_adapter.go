package erp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/erpapi"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// ERPAdapter implements ERPProvider over the ERP HTTP API
type ERPAdapter struct {
	sender erpapi.Sender
}

// NewERPAdapter creates an ERP adapter sending through sender
func NewERPAdapter(sender erpapi.Sender) *ERPAdapter {
	return &ERPAdapter{sender: sender}
}

var _ providers.ERPProvider = (*ERPAdapter)(nil)

type cancelPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ListEntities lists entities of a type for the given params
func (a *ERPAdapter) ListEntities(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, params entities.ERPParams) ([]entities.ERPEntity, error) {
	resp, err := a.sender.Send(ctx, integration, erpapi.Request{
		Method:  http.MethodPost,
		Path:    "entities/" + url.PathEscape(string(entityType)),
		Payload: params,
	})
	if err != nil {
		return nil, err
	}

	var items []entities.ERPEntity
	if err := resp.Decode(&items); err != nil {
		return nil, decodeError(integration, "entities", err)
	}
	return items, nil
}

// ListAvailableSlots lists candidate slots for one contiguous window
func (a *ERPAdapter) ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
	resp, err := a.sender.Send(ctx, integration, erpapi.Request{
		Method:  http.MethodPost,
		Path:    "availability",
		Payload: query,
	})
	if err != nil {
		return nil, err
	}

	var slots []entities.RawAvailabilitySlot
	if err := resp.Decode(&slots); err != nil {
		return nil, decodeError(integration, "availability", err)
	}
	return slots, nil
}

// CreateSchedule books a slot
func (a *ERPAdapter) CreateSchedule(ctx context.Context, integration *entities.Integration, req entities.CreateScheduleRequest) (*entities.ScheduleReceipt, error) {
	if req.PatientCode == "" {
		return nil, apperrors.NewValidationError("patient code is required to create a schedule")
	}

	resp, err := a.sender.Send(ctx, integration, erpapi.Request{
		Method:  http.MethodPost,
		Path:    "schedules",
		Payload: req,
		Write:   true,
	})
	if err != nil {
		return nil, err
	}

	var receipt entities.ScheduleReceipt
	if err := resp.Decode(&receipt); err != nil {
		return nil, decodeError(integration, "schedules", err)
	}
	if receipt.ScheduleCode == "" {
		return nil, apperrors.NewIntegrationError(integration.ID, "erp did not return a schedule code", resp.StatusCode, nil)
	}
	return &receipt, nil
}

// ConfirmSchedule confirms a booked schedule
func (a *ERPAdapter) ConfirmSchedule(ctx context.Context, integration *entities.Integration, scheduleCode string) error {
	if scheduleCode == "" {
		return apperrors.NewValidationError("schedule code is required")
	}
	_, err := a.sender.Send(ctx, integration, erpapi.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("schedules/%s/confirm", url.PathEscape(scheduleCode)),
		Write:  true,
	})
	return err
}

// CancelSchedule cancels a booked schedule
func (a *ERPAdapter) CancelSchedule(ctx context.Context, integration *entities.Integration, scheduleCode, reason string) error {
	if scheduleCode == "" {
		return apperrors.NewValidationError("schedule code is required")
	}
	_, err := a.sender.Send(ctx, integration, erpapi.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("schedules/%s/cancel", url.PathEscape(scheduleCode)),
		Payload: cancelPayload{Reason: reason},
		Write:   true,
	})
	return err
}

func decodeError(integration *entities.Integration, what string, err error) error {
	return apperrors.NewIntegrationError(integration.ID, fmt.Sprintf("failed to decode erp %s response", what), 0, err)
}
