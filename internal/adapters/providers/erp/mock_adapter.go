package erp

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// slot start hours offered by the mock, one per period of the day
var mockSlotHours = []int{9, 14, 19}

// MockAdapter provides deterministic ERP data for local development.
type MockAdapter struct {
	entitiesPerType int
	slotDuration    time.Duration
}

// NewMockAdapter creates a mock ERP provider.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		entitiesPerType: 3,
		slotDuration:    30 * time.Minute,
	}
}

var _ providers.ERPProvider = (*MockAdapter)(nil)

// MockEntityCode returns the code the mock uses for the i-th entity of a type
func MockEntityCode(entityType entities.EntityType, i int) string {
	return fmt.Sprintf("%s-%d", entityType, i)
}

// ListEntities returns the same numbered entities for every request.
func (m *MockAdapter) ListEntities(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, params entities.ERPParams) ([]entities.ERPEntity, error) {
	items := make([]entities.ERPEntity, 0, m.entitiesPerType)
	for i := 1; i <= m.entitiesPerType; i++ {
		order := i
		items = append(items, entities.ERPEntity{
			Code:  MockEntityCode(entityType, i),
			Name:  fmt.Sprintf("Mock %s %d", entityType, i),
			Order: &order,
		})
	}
	return items, nil
}

// ListAvailableSlots returns one slot per offered hour and day inside the
// query window, rotating through the mock doctors.
func (m *MockAdapter) ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
	if query.UntilDate.Before(query.FromDate) {
		return nil, fmt.Errorf("invalid time range")
	}

	var slots []entities.RawAvailabilitySlot
	n := 0
	for day := query.FromDate; day.Before(query.UntilDate); day = day.AddDate(0, 0, 1) {
		for _, hour := range mockSlotHours {
			if hour < query.StartHour || hour >= query.EndHour {
				continue
			}
			doctor := query.Params.DoctorCode
			if doctor == "" {
				doctor = MockEntityCode(entities.EntityTypeDoctor, n%m.entitiesPerType+1)
			}
			slots = append(slots, entities.RawAvailabilitySlot{
				Date:                 time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location()),
				DurationMinutes:      int(m.slotDuration.Minutes()),
				DoctorCode:           doctor,
				OrganizationUnitCode: MockEntityCode(entities.EntityTypeOrganizationUnit, 1),
				SpecialityCode:       query.Params.SpecialityCode,
				ProcedureCode:        query.Params.ProcedureCode,
				InsuranceCode:        query.Params.InsuranceCode,
				InsurancePlanCode:    query.Params.InsurancePlanCode,
			})
			n++
		}
	}
	return slots, nil
}

// CreateSchedule returns a booking code derived from the slot.
func (m *MockAdapter) CreateSchedule(ctx context.Context, integration *entities.Integration, req entities.CreateScheduleRequest) (*entities.ScheduleReceipt, error) {
	if req.PatientCode == "" {
		return nil, apperrors.NewValidationError("patient code is required to create a schedule")
	}
	return &entities.ScheduleReceipt{
		ScheduleCode: fmt.Sprintf("mock-%s-%d", req.Slot.DoctorCode, req.Slot.Date.Unix()),
	}, nil
}

// ConfirmSchedule is a no-op for the mock provider.
func (m *MockAdapter) ConfirmSchedule(ctx context.Context, integration *entities.Integration, scheduleCode string) error {
	if scheduleCode == "" {
		return apperrors.NewValidationError("schedule code is required")
	}
	return nil
}

// CancelSchedule is a no-op for the mock provider.
func (m *MockAdapter) CancelSchedule(ctx context.Context, integration *entities.Integration, scheduleCode, reason string) error {
	if scheduleCode == "" {
		return apperrors.NewValidationError("schedule code is required")
	}
	return nil
}
