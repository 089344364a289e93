package entities

import (
	"time"
)

// EntityRef is a lightweight pointer to an entity the caller is working with
type EntityRef struct {
	Code string `json:"code"`
	ID   string `json:"id,omitempty"`
}

// CorrelationFilter scopes a resolution or availability request. Keys are
// entity types, values the entity in context.
type CorrelationFilter map[EntityType]EntityRef

// Code returns the code for t, or "" when t is not in the filter
func (f CorrelationFilter) Code(t EntityType) string {
	if f == nil {
		return ""
	}
	return f[t].Code
}

// Has reports whether t is in the filter with a non-empty code
func (f CorrelationFilter) Has(t EntityType) bool {
	return f.Code(t) != ""
}

// PatientContext carries the patient attributes that narrow results
type PatientContext struct {
	Code      string     `json:"code,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Sex       string     `json:"sex,omitempty"`
}

// AgeAt returns the patient's age in whole years at now
func (p *PatientContext) AgeAt(now time.Time) (int, bool) {
	if p == nil || p.BirthDate == nil {
		return 0, false
	}
	born := *p.BirthDate
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}
