package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

var availabilityNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func octoberDay(day int) time.Time {
	return time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC)
}

// availabilityERP answers availability queries through respond and records
// them. Other ERP calls go to the embedded mock.
type availabilityERP struct {
	*MockERPProvider
	mu      sync.Mutex
	queries []entities.AvailabilityQuery
	respond func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error)
}

func newAvailabilityERP(respond func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error)) *availabilityERP {
	return &availabilityERP{MockERPProvider: new(MockERPProvider), respond: respond}
}

func (e *availabilityERP) ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
	e.mu.Lock()
	e.queries = append(e.queries, query)
	e.mu.Unlock()
	return e.respond(query)
}

func (e *availabilityERP) recorded() []entities.AvailabilityQuery {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]entities.AvailabilityQuery(nil), e.queries...)
	sort.Slice(out, func(i, j int) bool { return out[i].FromDate.Before(out[j].FromDate) })
	return out
}

func rawSlot(doctor string, at time.Time) entities.RawAvailabilitySlot {
	return entities.RawAvailabilitySlot{Date: at, DurationMinutes: 30, DoctorCode: doctor, OrganizationUnitCode: "OU1"}
}

func availabilityIntegration(maxSpan int) *entities.Integration {
	integration := testIntegration()
	integration.Settings.MaxAvailabilitySpanDays = maxSpan
	return integration
}

func newTestAvailabilityResolver(
	erp providers.ERPProvider,
	codes *MockEntityCodeResolver,
	external *MockExternalDoctorRepository,
	validator *MockInterAppointmentValidator,
	cache providers.CacheProvider,
	audit providers.AuditSink,
) *services.AvailabilityResolver {
	cfg := services.AvailabilityConfig{
		Audit: audit,
		Now:   func() time.Time { return availabilityNow },
	}
	var externalRepo repositories.ExternalDoctorRepository
	if external != nil {
		externalRepo = external
	}
	var validatorProvider providers.InterAppointmentValidator
	if validator != nil {
		validatorProvider = validator
	}
	return services.NewAvailabilityResolver(erp, codes, externalRepo, validatorProvider, nil, cache, cfg)
}

func TestAvailabilityResolver_SplitsAndFiltersDoctors(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(10)

	erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
		return []entities.RawAvailabilitySlot{
			rawSlot("D2", q.FromDate.Add(11*time.Hour)),
			rawSlot("D1", q.FromDate.Add(9*time.Hour)),
		}, nil
	})

	inactive := visibleEntity(entities.EntityTypeDoctor, "D2", "Retired")
	inactive.ActiveErp = false
	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
		Return(map[string]*entities.Entity{
			"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid"),
			"D2": inactive,
		}, nil).Once()

	resolver := newTestAvailabilityResolver(erp, codes, nil, nil, nil, nil)
	slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 37})
	require.NoError(t, err)

	queries := erp.recorded()
	require.Len(t, queries, 4)
	expected := [][2]time.Time{
		{octoberDay(15), octoberDay(25)},
		{octoberDay(25), octoberDay(35)},
		{octoberDay(35), octoberDay(45)},
		{octoberDay(45), octoberDay(52)},
	}
	for i, q := range queries {
		assert.True(t, expected[i][0].Equal(q.FromDate), "chunk %d from %s", i, q.FromDate)
		assert.True(t, expected[i][1].Equal(q.UntilDate), "chunk %d until %s", i, q.UntilDate)
		assert.Equal(t, 0, q.StartHour)
		assert.Equal(t, 24, q.EndHour)
	}

	require.Len(t, slots, 4)
	for i, slot := range slots {
		assert.Equal(t, "D1", slot.DoctorCode)
		require.NotNil(t, slot.Doctor)
		if i > 0 {
			assert.True(t, slots[i-1].Date.Before(slot.Date), "slots must be sorted by date")
		}
	}

	assert.Equal(t, 4, meta.ChunkCount)
	assert.Equal(t, 0, meta.FailedChunks)
	assert.Equal(t, 8, meta.RawSlotCount)
	assert.Equal(t, 4, meta.DroppedByDoctor)
	assert.False(t, meta.WindowShifted)
	require.NotNil(t, meta.FirstAvailableDate)
	assert.True(t, octoberDay(15).Add(9*time.Hour).Equal(*meta.FirstAvailableDate))
}

func TestAvailabilityResolver_DateLimit(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(10)

	t.Run("limit before the window start is rejected", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			t.Fatal("no upstream call expected")
			return nil, nil
		})
		resolver := newTestAvailabilityResolver(erp, new(MockEntityCodeResolver), nil, nil, nil, nil)

		limit := octoberDay(15)
		_, _, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 30, DateLimit: &limit})
		require.Error(t, err)
		assert.True(t, apperrors.IsDateRangeInvalid(err))
	})

	t.Run("limit recomputes the window end", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			return []entities.RawAvailabilitySlot{}, nil
		})
		codes := new(MockEntityCodeResolver)
		codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
			Return(map[string]*entities.Entity{}, nil)
		resolver := newTestAvailabilityResolver(erp, codes, nil, nil, nil, nil)

		limit := octoberDay(20).Add(15 * time.Hour)
		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 2, UntilDay: 30, DateLimit: &limit})
		require.NoError(t, err)

		assert.Empty(t, slots)
		assert.Equal(t, 2, meta.UntilDay)
		queries := erp.recorded()
		require.Len(t, queries, 1)
		assert.True(t, octoberDay(17).Equal(queries[0].FromDate))
		assert.True(t, octoberDay(19).Equal(queries[0].UntilDate))
	})

	t.Run("limit on the day after fromDay leaves an empty window", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			t.Fatal("no upstream call expected")
			return nil, nil
		})
		resolver := newTestAvailabilityResolver(erp, new(MockEntityCodeResolver), nil, nil, nil, nil)

		limit := octoberDay(18)
		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 2, UntilDay: 30, DateLimit: &limit})
		require.NoError(t, err)

		assert.Empty(t, slots)
		require.NotNil(t, meta)
		assert.Equal(t, 0, meta.UntilDay)
		assert.Empty(t, erp.recorded())
	})

	t.Run("empty window is rejected", func(t *testing.T) {
		resolver := newTestAvailabilityResolver(newAvailabilityERP(nil), new(MockEntityCodeResolver), nil, nil, nil, nil)

		_, _, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 0})
		require.Error(t, err)
		assert.True(t, apperrors.IsDateRangeInvalid(err))
	})
}

func TestAvailabilityResolver_InterAppointmentShift(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(10)
	filter := entities.CorrelationFilter{entities.EntityTypeInsurance: {Code: "INS1"}}
	patient := &entities.PatientContext{Code: "PAT-1"}

	erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
		return []entities.RawAvailabilitySlot{
			rawSlot("D1", octoberDay(20).Add(9*time.Hour)),
			rawSlot("D1", octoberDay(22).Add(9*time.Hour)),
			rawSlot("D3", octoberDay(20).Add(10*time.Hour)),
		}, nil
	})
	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
		Return(map[string]*entities.Entity{
			"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid"),
			"D3": visibleEntity(entities.EntityTypeDoctor, "D3", "Ann"),
		}, nil)
	validator := new(MockInterAppointmentValidator)
	validator.On("Validate", mock.Anything, integration, "PAT-1", filter).Return(&entities.InterAppointmentResult{
		PeriodDays:       5,
		EarliestByDoctor: map[string]time.Time{"D1": octoberDay(21).Add(10 * time.Hour)},
	}, nil)

	resolver := newTestAvailabilityResolver(erp, codes, nil, validator, nil, nil)
	slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{
		Filter:   filter,
		FromDay:  0,
		UntilDay: 5,
		Patient:  patient,
	})
	require.NoError(t, err)

	assert.True(t, meta.WindowShifted)
	assert.Equal(t, 0, meta.OriginalFromDay)
	assert.Equal(t, 5, meta.EffectiveFromDay)
	assert.Equal(t, 5, meta.InterAppointmentPeriod)
	assert.Equal(t, 1, meta.DroppedByInterAppoint)

	queries := erp.recorded()
	require.Len(t, queries, 1)
	assert.True(t, octoberDay(20).Equal(queries[0].FromDate))
	assert.True(t, octoberDay(25).Equal(queries[0].UntilDate))
	assert.Equal(t, "PAT-1", queries[0].PatientCode)

	require.Len(t, slots, 2)
	assert.Equal(t, "D3", slots[0].DoctorCode)
	assert.Equal(t, "D1", slots[1].DoctorCode)
	assert.True(t, octoberDay(22).Add(9*time.Hour).Equal(slots[1].Date))
}

func TestAvailabilityResolver_ExamSkipsDoctorRules(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(0)
	filter := entities.CorrelationFilter{
		entities.EntityTypeAppointmentType: {Code: "AT-EXAM"},
		entities.EntityTypeInsurance:       {Code: "INS1"},
	}

	erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
		return []entities.RawAvailabilitySlot{
			rawSlot("", octoberDay(16).Add(8*time.Hour)),
			rawSlot("UNKNOWN", octoberDay(16).Add(9*time.Hour)),
		}, nil
	})
	exam := visibleEntity(entities.EntityTypeAppointmentType, "AT-EXAM", "Exam")
	exam.Params.ScheduleType = entities.ScheduleTypeExam
	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeAppointmentType, []string{"AT-EXAM"}).
		Return(map[string]*entities.Entity{"AT-EXAM": exam}, nil)
	validator := new(MockInterAppointmentValidator)

	resolver := newTestAvailabilityResolver(erp, codes, nil, validator, nil, nil)
	slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{
		Filter:   filter,
		FromDay:  0,
		UntilDay: 7,
		Patient:  &entities.PatientContext{Code: "PAT-1"},
	})
	require.NoError(t, err)

	assert.Len(t, slots, 2)
	assert.Equal(t, 0, meta.DroppedByDoctor)
	validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	codes.AssertNotCalled(t, "ResolveCodes", mock.Anything, mock.Anything, entities.EntityTypeDoctor, mock.Anything)
}

func TestAvailabilityResolver_ExternalDoctors(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(0)
	integration.Settings.ExternalDoctorsEnabled = true

	erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
		return []entities.RawAvailabilitySlot{
			rawSlot("D1", octoberDay(16).Add(9*time.Hour)),
			rawSlot("X1", octoberDay(16).Add(10*time.Hour)),
			rawSlot("X2", octoberDay(16).Add(11*time.Hour)),
			rawSlot("", octoberDay(16).Add(12*time.Hour)),
		}, nil
	})
	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, []string{"D1", "X1", "X2"}).
		Return(map[string]*entities.Entity{"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid")}, nil)
	external := new(MockExternalDoctorRepository)
	external.On("FindExternalDoctors", mock.Anything, "int-1", []string{"D1", "X1", "X2"}).
		Return([]*entities.ExternalDoctor{
			{IntegrationID: "int-1", Code: "X1", Name: "Virtual Vic", Virtual: true},
			{IntegrationID: "int-1", Code: "X2", Name: "Real Rae"},
		}, nil)

	resolver := newTestAvailabilityResolver(erp, codes, external, nil, nil, nil)
	slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 1, UntilDay: 1})
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, "D1", slots[0].DoctorCode)
	assert.Equal(t, "X1", slots[1].DoctorCode)
	require.NotNil(t, slots[1].ExternalDoctor)
	assert.True(t, slots[1].ExternalDoctor.Virtual)
	assert.Equal(t, 2, meta.DroppedByDoctor)
}

func TestAvailabilityResolver_ChunkFailures(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(10)

	t.Run("failed chunks are dropped and audited", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			if q.FromDate.Equal(octoberDay(25)) {
				return nil, errors.New("read: connection reset by peer")
			}
			return []entities.RawAvailabilitySlot{rawSlot("D1", q.FromDate.Add(9*time.Hour))}, nil
		})
		codes := new(MockEntityCodeResolver)
		codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
			Return(map[string]*entities.Entity{"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid")}, nil)
		audit := &recordingAuditSink{}

		resolver := newTestAvailabilityResolver(erp, codes, nil, nil, nil, audit)
		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 30})
		require.NoError(t, err)

		assert.Len(t, slots, 2)
		assert.Equal(t, 3, meta.ChunkCount)
		assert.Equal(t, 1, meta.FailedChunks)
		assert.Eventually(t, func() bool { return audit.count() == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("all chunks failing is an integration error", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			return nil, errors.New("upstream unavailable")
		})
		resolver := newTestAvailabilityResolver(erp, new(MockEntityCodeResolver), nil, nil, nil, nil)

		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 30})
		require.Error(t, err)
		assert.True(t, apperrors.IsIntegrationError(err))
		assert.Nil(t, slots)
		assert.Nil(t, meta)
		assert.Len(t, erp.recorded(), 3)
	})

	t.Run("unsplit failure propagates", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			return nil, apperrors.NewIntegrationError("int-1", "boom", 502, nil)
		})
		resolver := newTestAvailabilityResolver(erp, new(MockEntityCodeResolver), nil, nil, nil, nil)

		_, _, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 30, FollowUpOnly: true})
		require.Error(t, err)
		assert.True(t, apperrors.IsIntegrationError(err))
		assert.Len(t, erp.recorded(), 1)
	})
}

func TestAvailabilityResolver_Cache(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(0)
	integration.Settings.AvailabilityCacheTTLSeconds = 300

	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
		Return(map[string]*entities.Entity{"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid")}, nil)

	t.Run("miss fetches and stores raw slots", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			return []entities.RawAvailabilitySlot{rawSlot("D1", octoberDay(16).Add(9*time.Hour))}, nil
		})
		cache := new(MockCacheProvider)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, providers.ErrCacheMiss)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, 300).Return(nil)

		resolver := newTestAvailabilityResolver(erp, codes, nil, nil, cache, nil)
		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 7})
		require.NoError(t, err)

		assert.Len(t, slots, 1)
		assert.False(t, meta.FromCache)
		cache.AssertNumberOfCalls(t, "Set", 1)
	})

	t.Run("hit skips the ERP", func(t *testing.T) {
		erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
			t.Fatal("no upstream call expected")
			return nil, nil
		})
		cached, err := json.Marshal([]entities.RawAvailabilitySlot{rawSlot("D1", octoberDay(17).Add(9*time.Hour))})
		require.NoError(t, err)
		cache := new(MockCacheProvider)
		cache.On("Get", mock.Anything, mock.Anything).Return(cached, nil)

		resolver := newTestAvailabilityResolver(erp, codes, nil, nil, cache, nil)
		slots, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{FromDay: 0, UntilDay: 7})
		require.NoError(t, err)

		require.Len(t, slots, 1)
		assert.True(t, meta.FromCache)
		assert.Equal(t, 0, meta.ChunkCount)
	})
}

func TestAvailabilityResolver_InterAppointmentShiftWithDateLimit(t *testing.T) {
	ctx := context.Background()
	integration := availabilityIntegration(10)
	filter := entities.CorrelationFilter{entities.EntityTypeInsurance: {Code: "INS1"}}
	patient := &entities.PatientContext{Code: "PAT-1"}

	erp := newAvailabilityERP(func(q entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
		return []entities.RawAvailabilitySlot{}, nil
	})
	codes := new(MockEntityCodeResolver)
	codes.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
		Return(map[string]*entities.Entity{}, nil)
	validator := new(MockInterAppointmentValidator)
	validator.On("Validate", mock.Anything, integration, "PAT-1", filter).
		Return(&entities.InterAppointmentResult{PeriodDays: 5}, nil)

	resolver := newTestAvailabilityResolver(erp, codes, nil, validator, nil, nil)
	limit := octoberDay(23)
	_, meta, err := resolver.ListAvailable(ctx, integration, entities.AvailabilityRequest{
		Filter:    filter,
		FromDay:   0,
		UntilDay:  30,
		DateLimit: &limit,
		Patient:   patient,
	})
	require.NoError(t, err)

	assert.True(t, meta.WindowShifted)
	assert.Equal(t, 5, meta.EffectiveFromDay)
	assert.Equal(t, 2, meta.UntilDay)

	queries := erp.recorded()
	require.Len(t, queries, 1)
	assert.True(t, octoberDay(20).Equal(queries[0].FromDate))
	assert.True(t, octoberDay(22).Equal(queries[0].UntilDate))
}
