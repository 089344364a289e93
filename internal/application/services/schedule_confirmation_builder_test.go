package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

func confirmationFixtures() (*MockEntityCodeResolver, []entities.RawSchedule) {
	integration := testIntegration()
	blocked := visibleEntity(entities.EntityTypeDoctor, "D2", "Bea")
	blocked.CanConfirmActive = false

	resolver := new(MockEntityCodeResolver)
	resolver.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeDoctor, mock.Anything).
		Return(map[string]*entities.Entity{
			"D1": visibleEntity(entities.EntityTypeDoctor, "D1", "Cid"),
			"D2": blocked,
		}, nil).Once()
	resolver.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeProcedure, mock.Anything).
		Return(map[string]*entities.Entity{
			"P1": visibleEntity(entities.EntityTypeProcedure, "P1", "X-Ray"),
		}, nil).Once()
	resolver.On("ResolveCodes", mock.Anything, integration, entities.EntityTypeInsurance, []string{"I1"}).
		Return(map[string]*entities.Entity{
			"I1": visibleEntity(entities.EntityTypeInsurance, "I1", "Acme Health"),
		}, nil).Once()

	at := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	schedules := []entities.RawSchedule{
		{ScheduleCode: "S1", PatientCode: "PAT-1", Date: at, DoctorCode: "D1", ProcedureCode: "P1", InsuranceCode: "I1"},
		{ScheduleCode: "S2", PatientCode: "PAT-2", Date: at, DoctorCode: "D2", ProcedureCode: "P1"},
		{ScheduleCode: "S3", PatientCode: "PAT-3", Date: at, DoctorCode: "D1", ProcedureCode: "P9", InsuranceCode: "I1"},
	}
	return resolver, schedules
}

func TestScheduleConfirmationBuilder_BuildConfirmations(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves each type once and routes by eligibility", func(t *testing.T) {
		resolver, schedules := confirmationFixtures()
		flows := new(MockFlowMatcher)
		flows.On("Match", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				for _, c := range args.Get(2).([]*entities.ScheduleConfirmation) {
					c.Flows = []string{"reminder"}
				}
			}).
			Return(nil)

		builder := services.NewScheduleConfirmationBuilder(resolver, flows)
		batch, err := builder.BuildConfirmations(ctx, testIntegration(), schedules, services.ConfirmationOptions{})
		require.NoError(t, err)

		resolver.AssertNumberOfCalls(t, "ResolveCodes", 3)
		resolver.AssertExpectations(t)

		require.Len(t, batch.Confirmable, 2)
		assert.Equal(t, "S1", batch.Confirmable[0].Schedule.ScheduleCode)
		assert.Equal(t, "S3", batch.Confirmable[1].Schedule.ScheduleCode)
		assert.True(t, batch.Confirmable[1].CanConfirmActive)
		assert.NotContains(t, batch.Confirmable[1].Entities, entities.EntityTypeProcedure)
		assert.Equal(t, []string{"reminder"}, batch.Confirmable[0].Flows)

		require.Len(t, batch.Excluded, 1)
		assert.Equal(t, "S2", batch.Excluded[0].Schedule.ScheduleCode)
		assert.False(t, batch.Excluded[0].CanConfirmActive)
		assert.Equal(t, []entities.EntityType{entities.EntityTypeDoctor}, batch.Excluded[0].BlockedBy)
		assert.Empty(t, batch.Excluded[0].Flows)

		assert.Equal(t, entities.ConfirmationMetadata{
			Total:         3,
			Confirmable:   2,
			Excluded:      1,
			ResolvedTypes: 3,
		}, batch.Metadata)
	})

	t.Run("cap truncates confirmable only", func(t *testing.T) {
		resolver, schedules := confirmationFixtures()

		builder := services.NewScheduleConfirmationBuilder(resolver, nil)
		batch, err := builder.BuildConfirmations(ctx, testIntegration(), schedules, services.ConfirmationOptions{MaxConfirmable: 1})
		require.NoError(t, err)

		require.Len(t, batch.Confirmable, 1)
		assert.Equal(t, "S1", batch.Confirmable[0].Schedule.ScheduleCode)
		assert.Len(t, batch.Excluded, 1)
		assert.True(t, batch.Metadata.Truncated)
	})

	t.Run("flow matcher failure propagates", func(t *testing.T) {
		resolver, schedules := confirmationFixtures()
		flows := new(MockFlowMatcher)
		flows.On("Match", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("flow engine down"))

		builder := services.NewScheduleConfirmationBuilder(resolver, flows)
		_, err := builder.BuildConfirmations(ctx, testIntegration(), schedules, services.ConfirmationOptions{})
		require.Error(t, err)
	})

	t.Run("resolver failure propagates", func(t *testing.T) {
		resolver := new(MockEntityCodeResolver)
		resolver.On("ResolveCodes", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("store unavailable"))

		builder := services.NewScheduleConfirmationBuilder(resolver, nil)
		_, err := builder.BuildConfirmations(ctx, testIntegration(), []entities.RawSchedule{{ScheduleCode: "S1", DoctorCode: "D1"}}, services.ConfirmationOptions{})
		require.Error(t, err)
	})

	t.Run("empty batch", func(t *testing.T) {
		builder := services.NewScheduleConfirmationBuilder(new(MockEntityCodeResolver), nil)
		batch, err := builder.BuildConfirmations(ctx, testIntegration(), nil, services.ConfirmationOptions{})
		require.NoError(t, err)
		assert.Empty(t, batch.Confirmable)
		assert.Empty(t, batch.Excluded)
		assert.Equal(t, 0, batch.Metadata.ResolvedTypes)
	})
}
