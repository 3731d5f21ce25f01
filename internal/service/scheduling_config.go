package service

import (
	"time"

	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
)

// SchedulingConfig carries the rules shared by the calendar services.
type SchedulingConfig struct {
	// Location is the association's time zone. "Today" and elapsed checks use it.
	Location        *time.Location
	StrictStatus    bool
	MinFreeDuration time.Duration
	CacheTTL        time.Duration
	Now             func() time.Time
}

func (c SchedulingConfig) withDefaults() SchedulingConfig {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.MinFreeDuration <= 0 {
		c.MinFreeDuration = scheduling.MinFreeDuration
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c SchedulingConfig) now() time.Time {
	return c.Now().In(c.Location)
}

func (c SchedulingConfig) today() models.Date {
	return models.DateOf(c.now())
}
