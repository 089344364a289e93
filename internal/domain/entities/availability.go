package entities

import (
	"time"
)

// PeriodOfDay restricts availability to part of the day
type PeriodOfDay string

const (
	PeriodAny       PeriodOfDay = "any"
	PeriodMorning   PeriodOfDay = "morning"
	PeriodAfternoon PeriodOfDay = "afternoon"
	PeriodNight     PeriodOfDay = "night"
)

// HourWindow returns the [start, end) hours covered by the period
func (p PeriodOfDay) HourWindow() (int, int) {
	switch p {
	case PeriodMorning:
		return 0, 12
	case PeriodAfternoon:
		return 12, 18
	case PeriodNight:
		return 18, 24
	}
	return 0, 24
}

// Contains reports whether t falls inside the period
func (p PeriodOfDay) Contains(t time.Time) bool {
	start, end := p.HourWindow()
	return t.Hour() >= start && t.Hour() < end
}

// SortMethod controls the order of the final slot list
type SortMethod string

const (
	SortByDate SortMethod = "date"
	// SortSpread picks slots spread across days before filling a day
	SortSpread SortMethod = "spread"
	SortRandom SortMethod = "random"
)

// RawAvailabilitySlot is a candidate appointment returned by the ERP
type RawAvailabilitySlot struct {
	Date                 time.Time      `json:"date"`
	DurationMinutes      int            `json:"duration"`
	DoctorCode           string         `json:"doctorCode"`
	OrganizationUnitCode string         `json:"organizationUnitCode"`
	SpecialityCode       string         `json:"specialityCode,omitempty"`
	ProcedureCode        string         `json:"procedureCode,omitempty"`
	InsuranceCode        string         `json:"insuranceCode,omitempty"`
	InsurancePlanCode    string         `json:"insurancePlanCode,omitempty"`
	Data                 map[string]any `json:"data,omitempty"`
}

// ResolvedSlot is a slot that survived doctor and spacing filters
type ResolvedSlot struct {
	RawAvailabilitySlot
	Doctor         *Entity         `json:"doctor,omitempty"`
	ExternalDoctor *ExternalDoctor `json:"externalDoctor,omitempty"`
}

// AvailabilityRequest asks for open slots. The searched window covers the
// days [FromDay, FromDay+UntilDay) counted from today.
type AvailabilityRequest struct {
	Filter   CorrelationFilter `json:"filter"`
	FromDay  int               `json:"fromDay"`
	UntilDay int               `json:"untilDay"`
	Patient  *PatientContext   `json:"patient,omitempty"`

	Period     PeriodOfDay `json:"period,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	SortMethod SortMethod  `json:"sortMethod,omitempty"`

	// DateLimit is the first day no longer searched. When set, UntilDay is
	// recomputed so the window stops right before it.
	DateLimit *time.Time `json:"dateLimit,omitempty"`

	// FollowUpOnly asks the ERP for return visits only. Such requests are
	// never split.
	FollowUpOnly bool `json:"followUpOnly,omitempty"`
}

// AvailabilityQuery is the upstream request for one contiguous window
type AvailabilityQuery struct {
	FromDate     time.Time `json:"fromDate"`
	UntilDate    time.Time `json:"untilDate"`
	StartHour    int       `json:"startHour"`
	EndHour      int       `json:"endHour"`
	Params       ERPParams `json:"params"`
	PatientCode  string    `json:"patientCode,omitempty"`
	FollowUpOnly bool      `json:"followUpOnly,omitempty"`
}

// AvailabilityMetadata describes how the result was produced
type AvailabilityMetadata struct {
	// WindowShifted is set when inter-appointment spacing moved FromDay.
	WindowShifted    bool `json:"windowShifted"`
	OriginalFromDay  int  `json:"originalFromDay"`
	EffectiveFromDay int  `json:"effectiveFromDay"`
	UntilDay         int  `json:"untilDay"`

	InterAppointmentPeriod int `json:"interAppointmentPeriod,omitempty"`

	ChunkCount   int `json:"chunkCount"`
	FailedChunks int `json:"failedChunks"`

	RawSlotCount          int `json:"rawSlotCount"`
	DroppedByDoctor       int `json:"droppedByDoctor"`
	DroppedByInterAppoint int `json:"droppedByInterAppointment"`

	FromCache          bool       `json:"fromCache"`
	FirstAvailableDate *time.Time `json:"firstAvailableDate,omitempty"`
}

// InterAppointmentResult is the spacing rule that applies to a patient
type InterAppointmentResult struct {
	// PeriodDays is the minimum number of days before the next eligible
	// appointment.
	PeriodDays int `json:"periodDays"`

	// EarliestByDoctor maps doctor codes to the first date the patient may
	// book with that doctor.
	EarliestByDoctor map[string]time.Time `json:"earliestByDoctor,omitempty"`
}
