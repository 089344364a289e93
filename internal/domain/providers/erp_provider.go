package providers

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// ERPProvider defines the operations the engine needs from an ERP
type ERPProvider interface {
	// ListEntities returns the entities of a type the ERP offers for params
	ListEntities(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, params entities.ERPParams) ([]entities.ERPEntity, error)

	// ListAvailableSlots returns candidate slots for one contiguous window
	ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error)

	// CreateSchedule books a slot. A taken slot yields a ScheduleConflict.
	CreateSchedule(ctx context.Context, integration *entities.Integration, req entities.CreateScheduleRequest) (*entities.ScheduleReceipt, error)

	// ConfirmSchedule confirms a booked schedule
	ConfirmSchedule(ctx context.Context, integration *entities.Integration, scheduleCode string) error

	// CancelSchedule cancels a booked schedule
	CancelSchedule(ctx context.Context, integration *entities.Integration, scheduleCode, reason string) error
}
