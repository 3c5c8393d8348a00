package manager

import (
	"time"

	"skuldbot/compliance/pkg/pack"
)

// PackSummary describes a registered pack for listings.
type PackSummary struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Tenant       string    `json:"tenant,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	BaseStandard string    `json:"baseStandard,omitempty"`
	Description  string    `json:"description,omitempty"`
	Rules        int       `json:"rules"`
	Source       string    `json:"source,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Ref returns the summary's pack reference.
func (s PackSummary) Ref() pack.Ref {
	return pack.Ref{ID: s.ID, Version: s.Version}
}

// RegistryStats reports registry state.
type RegistryStats struct {
	Packs     int       `json:"packs"`
	Tenants   int       `json:"tenants"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterHook observes every registration attempt. err is nil on success.
type RegisterHook func(ref pack.Ref, err error)
