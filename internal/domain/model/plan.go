package model

import "time"

// Plan is one entry of the fixed price list supplied by the planning
// authority. The core only resolves a code to an amount; catalog
// management lives elsewhere.
type Plan struct {
	Code         string
	Name         string
	PricePaise   int64
	DurationDays int
	CreatedAt    time.Time
}
