package core

import (
	"time"
	_ "time/tzdata" // Africa/Addis_Ababa must resolve on bare containers
)

// Clock is the source of "now" for anything date-dependent.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

func (c systemClock) Now() time.Time { return time.Now().In(c.loc) }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// NewClock returns a frozen clock when conf.Attendance.ReferenceTime is set,
// the system clock in conf.Attendance.Timezone otherwise.
func NewClock(conf *Config) Clock {
	loc := LoadLocation(conf.Attendance.Timezone)
	if !conf.Attendance.ReferenceTime.IsZero() {
		return FixedClock(conf.Attendance.ReferenceTime.In(loc))
	}
	return systemClock{loc: loc}
}

// LoadLocation falls back to East Africa Time (UTC+3) when the zone cannot be loaded.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}
