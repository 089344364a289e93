package services_test

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
)

// Mocks

type MockERPProvider struct {
	mock.Mock
}

func (m *MockERPProvider) ListEntities(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, params entities.ERPParams) ([]entities.ERPEntity, error) {
	args := m.Called(ctx, integration, entityType, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ERPEntity), args.Error(1)
}

func (m *MockERPProvider) ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
	args := m.Called(ctx, integration, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RawAvailabilitySlot), args.Error(1)
}

func (m *MockERPProvider) CreateSchedule(ctx context.Context, integration *entities.Integration, req entities.CreateScheduleRequest) (*entities.ScheduleReceipt, error) {
	args := m.Called(ctx, integration, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ScheduleReceipt), args.Error(1)
}

func (m *MockERPProvider) ConfirmSchedule(ctx context.Context, integration *entities.Integration, scheduleCode string) error {
	args := m.Called(ctx, integration, scheduleCode)
	return args.Error(0)
}

func (m *MockERPProvider) CancelSchedule(ctx context.Context, integration *entities.Integration, scheduleCode, reason string) error {
	args := m.Called(ctx, integration, scheduleCode, reason)
	return args.Error(0)
}

type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) FindByCodes(ctx context.Context, integrationID string, entityType entities.EntityType, codes []string, filter repositories.EntityFilter) ([]*entities.Entity, error) {
	args := m.Called(ctx, integrationID, entityType, codes, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Entity), args.Error(1)
}

func (m *MockEntityRepository) FindByID(ctx context.Context, integrationID, id string) (*entities.Entity, error) {
	args := m.Called(ctx, integrationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Entity), args.Error(1)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheProvider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

// memoryCache is a working CacheProvider for tests that need real
// read-after-write behaviour
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
			n++
		}
	}
	return n, nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type MockEntityCodeResolver struct {
	mock.Mock
}

func (m *MockEntityCodeResolver) ResolveCodes(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, codes []string) (map[string]*entities.Entity, error) {
	args := m.Called(ctx, integration, entityType, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*entities.Entity), args.Error(1)
}

type MockExternalDoctorRepository struct {
	mock.Mock
}

func (m *MockExternalDoctorRepository) FindExternalDoctors(ctx context.Context, integrationID string, codes []string) ([]*entities.ExternalDoctor, error) {
	args := m.Called(ctx, integrationID, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ExternalDoctor), args.Error(1)
}

type MockInterAppointmentValidator struct {
	mock.Mock
}

func (m *MockInterAppointmentValidator) Validate(ctx context.Context, integration *entities.Integration, patientCode string, filter entities.CorrelationFilter) (*entities.InterAppointmentResult, error) {
	args := m.Called(ctx, integration, patientCode, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.InterAppointmentResult), args.Error(1)
}

type MockFlowMatcher struct {
	mock.Mock
}

func (m *MockFlowMatcher) Match(ctx context.Context, integration *entities.Integration, confirmations []*entities.ScheduleConfirmation) error {
	args := m.Called(ctx, integration, confirmations)
	return args.Error(0)
}

type recordingAuditSink struct {
	mu     sync.Mutex
	events []providers.AuditEvent
}

func (s *recordingAuditSink) Record(ctx context.Context, event providers.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingAuditSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Fixtures

func testIntegration() *entities.Integration {
	return &entities.Integration{ID: "int-1", Name: "Test ERP", Enabled: true}
}

func visibleEntity(entityType entities.EntityType, code, name string) *entities.Entity {
	e := entities.NewEntity("int-1", entityType, code, name)
	e.ID = "id-" + code
	return e
}

func intPtr(v int) *int {
	return &v
}
