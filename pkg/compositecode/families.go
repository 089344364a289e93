package compositecode

// Tag orders are part of the stored data. Never reorder them; add a new
// family instead.
var (
	ProcedureCodec  = Codec{Family: "procedure", Tags: []string{"c", "s", "st", "a", "l"}}
	SpecialityCodec = Codec{Family: "speciality", Tags: []string{"c", "st"}}
	SubPlanCodec    = Codec{Family: "sub-plan", Tags: []string{"c", "p", "i"}}
	PlanCodec       = Codec{Family: "plan", Tags: []string{"c", "i"}}
)

// ProcedureParts are the fields packed into a ProcedureCode.
type ProcedureParts struct {
	Code           string `json:"code"`
	SpecialityCode string `json:"specialityCode"`
	SpecialityType string `json:"specialityType"`
	AreaCode       string `json:"areaCode"`
	LateralityCode string `json:"lateralityCode"`
}

// ProcedureCode is a composite procedure identifier.
type ProcedureCode string

// EncodeProcedure builds a ProcedureCode from its parts.
func EncodeProcedure(p ProcedureParts) (ProcedureCode, error) {
	code, err := ProcedureCodec.Encode([]string{p.Code, p.SpecialityCode, p.SpecialityType, p.AreaCode, p.LateralityCode})
	return ProcedureCode(code), err
}

// Decode unpacks the procedure code.
func (c ProcedureCode) Decode() (ProcedureParts, error) {
	v, err := ProcedureCodec.Decode(string(c))
	if err != nil {
		return ProcedureParts{}, err
	}
	return ProcedureParts{Code: v[0], SpecialityCode: v[1], SpecialityType: v[2], AreaCode: v[3], LateralityCode: v[4]}, nil
}

// SpecialityParts are the fields packed into a SpecialityCode.
type SpecialityParts struct {
	Code           string `json:"code"`
	SpecialityType string `json:"specialityType"`
}

// SpecialityCode is a composite speciality identifier.
type SpecialityCode string

// EncodeSpeciality builds a SpecialityCode from its parts.
func EncodeSpeciality(p SpecialityParts) (SpecialityCode, error) {
	code, err := SpecialityCodec.Encode([]string{p.Code, p.SpecialityType})
	return SpecialityCode(code), err
}

// Decode unpacks the speciality code.
func (c SpecialityCode) Decode() (SpecialityParts, error) {
	v, err := SpecialityCodec.Decode(string(c))
	if err != nil {
		return SpecialityParts{}, err
	}
	return SpecialityParts{Code: v[0], SpecialityType: v[1]}, nil
}

// SubPlanParts are the fields packed into a SubPlanCode.
type SubPlanParts struct {
	Code          string `json:"code"`
	PlanCode      string `json:"planCode"`
	InsuranceCode string `json:"insuranceCode"`
}

// SubPlanCode is a composite insurance sub-plan identifier.
type SubPlanCode string

// EncodeSubPlan builds a SubPlanCode from its parts.
func EncodeSubPlan(p SubPlanParts) (SubPlanCode, error) {
	code, err := SubPlanCodec.Encode([]string{p.Code, p.PlanCode, p.InsuranceCode})
	return SubPlanCode(code), err
}

// Decode unpacks the sub-plan code.
func (c SubPlanCode) Decode() (SubPlanParts, error) {
	v, err := SubPlanCodec.Decode(string(c))
	if err != nil {
		return SubPlanParts{}, err
	}
	return SubPlanParts{Code: v[0], PlanCode: v[1], InsuranceCode: v[2]}, nil
}

// PlanParts are the fields packed into a PlanCode. Plan categories share
// this family.
type PlanParts struct {
	Code          string `json:"code"`
	InsuranceCode string `json:"insuranceCode"`
}

// PlanCode is a composite insurance plan (or plan category) identifier.
type PlanCode string

// EncodePlan builds a PlanCode from its parts.
func EncodePlan(p PlanParts) (PlanCode, error) {
	code, err := PlanCodec.Encode([]string{p.Code, p.InsuranceCode})
	return PlanCode(code), err
}

// Decode unpacks the plan code.
func (c PlanCode) Decode() (PlanParts, error) {
	v, err := PlanCodec.Decode(string(c))
	if err != nil {
		return PlanParts{}, err
	}
	return PlanParts{Code: v[0], InsuranceCode: v[1]}, nil
}
