package entities

import (
	"time"
)

// IntegrationSettings are per-integration knobs read by the resolvers
type IntegrationSettings struct {
	// MaxAvailabilitySpanDays splits availability requests longer than this
	// many days. Zero disables splitting.
	MaxAvailabilitySpanDays int `json:"maxAvailabilitySpanDays"`

	// ExternalDoctorsEnabled lets availability keep slots of virtual doctors
	// that have no local record.
	ExternalDoctorsEnabled bool `json:"externalDoctorsEnabled"`

	// AvailabilityCacheTTLSeconds caches raw upstream availability. Zero
	// falls back to the engine default.
	AvailabilityCacheTTLSeconds int `json:"availabilityCacheTtlSeconds"`

	Timezone string `json:"timezone,omitempty"`
}

// Integration is one configured ERP connection
type Integration struct {
	ID        string              `json:"id" db:"id"`
	Name      string              `json:"name" db:"name"`
	Type      string              `json:"type" db:"type"`
	Enabled   bool                `json:"enabled" db:"enabled"`
	Settings  IntegrationSettings `json:"settings" db:"settings"`
	CreatedAt time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time           `json:"updatedAt" db:"updated_at"`
}

// Location returns the integration's time zone, UTC when unset or unknown
func (i *Integration) Location() *time.Location {
	if i == nil || i.Settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(i.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Credentials are the ERP endpoint and token for one integration
type Credentials struct {
	APIURL   string `json:"apiUrl" db:"api_url"`
	APIToken string `json:"apiToken" db:"api_token"`
}
