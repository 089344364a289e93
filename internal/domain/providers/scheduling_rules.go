package providers

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// InterAppointmentValidator computes the spacing a patient must respect
// before booking again
type InterAppointmentValidator interface {
	Validate(ctx context.Context, integration *entities.Integration, patientCode string, filter entities.CorrelationFilter) (*entities.InterAppointmentResult, error)
}

// ShapeOptions carries the caller's presentation preferences
type ShapeOptions struct {
	Period     entities.PeriodOfDay
	Limit      int
	SortMethod entities.SortMethod
}

// SlotShaper applies period, sort, randomization and limit to resolved slots
type SlotShaper interface {
	Shape(slots []*entities.ResolvedSlot, opts ShapeOptions) []*entities.ResolvedSlot
}

// FlowMatcher attaches business flows to confirmable schedules
type FlowMatcher interface {
	Match(ctx context.Context, integration *entities.Integration, confirmations []*entities.ScheduleConfirmation) error
}
