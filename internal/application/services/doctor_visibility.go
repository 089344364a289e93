package services

import (
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// InternalDoctorState is what the local entity store knows about a doctor
type InternalDoctorState string

const (
	InternalAbsent  InternalDoctorState = "absent"
	InternalHidden  InternalDoctorState = "hidden"
	InternalVisible InternalDoctorState = "visible"
)

// ExternalDoctorState is what the external doctor registry knows about a
// doctor
type ExternalDoctorState string

const (
	ExternalAbsent  ExternalDoctorState = "absent"
	ExternalReal    ExternalDoctorState = "real"
	ExternalVirtual ExternalDoctorState = "virtual"
)

type doctorVisibilityKey struct {
	externalRule bool
	internal     InternalDoctorState
	external     ExternalDoctorState
}

// doctorVisibility decides whether a slot is kept. With the external rule
// off only the internal record counts. With it on, a virtual external
// doctor also keeps the slot when there is no internal record.
var doctorVisibility = map[doctorVisibilityKey]bool{
	{false, InternalAbsent, ExternalAbsent}:   false,
	{false, InternalAbsent, ExternalReal}:     false,
	{false, InternalAbsent, ExternalVirtual}:  false,
	{false, InternalHidden, ExternalAbsent}:   false,
	{false, InternalHidden, ExternalReal}:     false,
	{false, InternalHidden, ExternalVirtual}:  false,
	{false, InternalVisible, ExternalAbsent}:  true,
	{false, InternalVisible, ExternalReal}:    true,
	{false, InternalVisible, ExternalVirtual}: true,

	{true, InternalAbsent, ExternalAbsent}:   false,
	{true, InternalAbsent, ExternalReal}:     false,
	{true, InternalAbsent, ExternalVirtual}:  true,
	{true, InternalHidden, ExternalAbsent}:   false,
	{true, InternalHidden, ExternalReal}:     false,
	{true, InternalHidden, ExternalVirtual}:  false,
	{true, InternalVisible, ExternalAbsent}:  true,
	{true, InternalVisible, ExternalReal}:    true,
	{true, InternalVisible, ExternalVirtual}: true,
}

// InternalStateOf classifies a stored doctor record
func InternalStateOf(doctor *entities.Entity) InternalDoctorState {
	switch {
	case doctor == nil:
		return InternalAbsent
	case doctor.IsVisible():
		return InternalVisible
	}
	return InternalHidden
}

// ExternalStateOf classifies an external registry record
func ExternalStateOf(doctor *entities.ExternalDoctor) ExternalDoctorState {
	switch {
	case doctor == nil:
		return ExternalAbsent
	case doctor.Virtual:
		return ExternalVirtual
	}
	return ExternalReal
}

// KeepDoctorSlot reports whether a slot owned by this doctor stays visible
func KeepDoctorSlot(externalRule bool, internal InternalDoctorState, external ExternalDoctorState) bool {
	return doctorVisibility[doctorVisibilityKey{externalRule, internal, external}]
}
