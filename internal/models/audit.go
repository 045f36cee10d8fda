// internal/models/audit.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// UnresolvedComponent records a proposed name that did not match any catalog
// product. Records are append-only and used for offline catalog analysis.
type UnresolvedComponent struct {
	ID            uuid.UUID `json:"id"`
	BuildID       string    `json:"buildId"`
	Category      Category  `json:"category"`
	RequestedName string    `json:"requestedName"`
	Budget        int64     `json:"budget"`
	Attempt       int       `json:"attempt"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// NewUnresolvedComponent stamps a fresh record with an ID and the current time.
func NewUnresolvedComponent(buildID string, category Category, name string, budget int64, attempt int) UnresolvedComponent {
	return UnresolvedComponent{
		ID:            uuid.New(),
		BuildID:       buildID,
		Category:      category,
		RequestedName: name,
		Budget:        budget,
		Attempt:       attempt,
		RecordedAt:    time.Now().UTC(),
	}
}
