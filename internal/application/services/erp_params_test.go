package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

var paramsNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func testPatient() *entities.PatientContext {
	birth := time.Date(2000, 10, 16, 0, 0, 0, 0, time.UTC)
	return &entities.PatientContext{Code: "PAT-1", BirthDate: &birth, Sex: "F"}
}

func TestBuildERPParams_DecodesCompositeCodes(t *testing.T) {
	filter := entities.CorrelationFilter{
		entities.EntityTypeProcedure:     {Code: "cPR1:sS1:stCLIN:aA1:lLEFT"},
		entities.EntityTypeInsurancePlan: {Code: "cP1:iINS1"},
		entities.EntityTypeDoctor:        {Code: "D1"},
	}

	params, err := services.BuildERPParams(entities.EntityTypeDoctor, filter, nil, paramsNow)
	require.NoError(t, err)

	assert.Equal(t, "PR1", params.ProcedureCode)
	assert.Equal(t, "S1", params.SpecialityCode)
	assert.Equal(t, "CLIN", params.SpecialityType)
	assert.Equal(t, "A1", params.AreaCode)
	assert.Equal(t, "LEFT", params.LateralityCode)
	assert.Equal(t, "P1", params.InsurancePlanCode)
	assert.Equal(t, "INS1", params.InsuranceCode)
	assert.Equal(t, "D1", params.DoctorCode)
}

func TestBuildERPParams_ExplicitFilterWinsOverDecodedSegment(t *testing.T) {
	filter := entities.CorrelationFilter{
		entities.EntityTypeInsurance:        {Code: "INS-EXPLICIT"},
		entities.EntityTypeInsuranceSubPlan: {Code: "cSP1:pP1:iINS1"},
	}

	params, err := services.BuildERPParams(entities.EntityTypeInsurancePlan, filter, nil, paramsNow)
	require.NoError(t, err)

	assert.Equal(t, "SP1", params.InsuranceSubPlanCode)
	assert.Equal(t, "P1", params.InsurancePlanCode)
	assert.Equal(t, "INS-EXPLICIT", params.InsuranceCode)
}

func TestBuildERPParams_PlainCodesPassThrough(t *testing.T) {
	filter := entities.CorrelationFilter{
		entities.EntityTypeSpeciality:    {Code: "SPEC-9"},
		entities.EntityTypeInsurancePlan: {Code: "PLAN-2"},
	}

	params, err := services.BuildERPParams(entities.EntityTypeDoctor, filter, nil, paramsNow)
	require.NoError(t, err)

	assert.Equal(t, "SPEC-9", params.SpecialityCode)
	assert.Equal(t, "PLAN-2", params.InsurancePlanCode)
	assert.Empty(t, params.InsuranceCode)
}

func TestBuildERPParams_MalformedCompositeCode(t *testing.T) {
	filter := entities.CorrelationFilter{
		entities.EntityTypeInsurancePlan: {Code: "cP1:iINS1:extra"},
	}

	_, err := services.BuildERPParams(entities.EntityTypeDoctor, filter, nil, paramsNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsMalformedCompositeCode(err))
}

func TestBuildERPParams_PatientContext(t *testing.T) {
	t.Run("merged for doctor listings", func(t *testing.T) {
		params, err := services.BuildERPParams(entities.EntityTypeDoctor, nil, testPatient(), paramsNow)
		require.NoError(t, err)

		require.NotNil(t, params.PatientAge)
		assert.Equal(t, 25, *params.PatientAge)
		assert.Equal(t, "F", params.PatientSex)
	})

	t.Run("ignored for insurance listings", func(t *testing.T) {
		params, err := services.BuildERPParams(entities.EntityTypeInsurance, nil, testPatient(), paramsNow)
		require.NoError(t, err)

		assert.Nil(t, params.PatientAge)
		assert.Empty(t, params.PatientSex)
	})
}
