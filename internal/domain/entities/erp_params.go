package entities

// ERPParamsVersion is bumped whenever ERPParams changes shape so cache keys
// built from older layouts stop matching.
const ERPParamsVersion = 1

// ERPParams are the query parameters sent to an ERP listing or availability
// call. Composite codes are already decoded to the plain codes the ERP
// expects. Extra holds integration-specific parameters.
type ERPParams struct {
	DoctorCode                   string `json:"doctorCode,omitempty"`
	ProcedureCode                string `json:"procedureCode,omitempty"`
	SpecialityCode               string `json:"specialityCode,omitempty"`
	SpecialityType               string `json:"specialityType,omitempty"`
	AreaCode                     string `json:"areaCode,omitempty"`
	LateralityCode               string `json:"lateralityCode,omitempty"`
	InsuranceCode                string `json:"insuranceCode,omitempty"`
	InsurancePlanCode            string `json:"insurancePlanCode,omitempty"`
	InsuranceSubPlanCode         string `json:"insuranceSubPlanCode,omitempty"`
	PlanCategoryCode             string `json:"planCategoryCode,omitempty"`
	OrganizationUnitCode         string `json:"organizationUnitCode,omitempty"`
	OrganizationUnitLocationCode string `json:"organizationUnitLocationCode,omitempty"`
	OccupationAreaCode           string `json:"occupationAreaCode,omitempty"`
	TypeOfServiceCode            string `json:"typeOfServiceCode,omitempty"`
	AppointmentTypeCode          string `json:"appointmentTypeCode,omitempty"`

	PatientAge *int   `json:"patientAge,omitempty"`
	PatientSex string `json:"patientSex,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// WithoutPatient returns a copy with the patient fields cleared
func (p ERPParams) WithoutPatient() ERPParams {
	p.PatientAge = nil
	p.PatientSex = ""
	return p
}

// WithoutInsurance returns a copy with every insurance field cleared
func (p ERPParams) WithoutInsurance() ERPParams {
	p.InsuranceCode = ""
	p.InsurancePlanCode = ""
	p.InsuranceSubPlanCode = ""
	p.PlanCategoryCode = ""
	return p
}
