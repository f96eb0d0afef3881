// Package ethiopic converts Gregorian dates to the Ethiopian calendar.
//
// The Ethiopian year has 12 months of 30 days followed by Pagume, a 13th month
// of 5 days (6 in leap years). A year y is a leap year when y%4 == 3, i.e. the
// year before a Gregorian leap year starts on Meskerem 1.
package ethiopic

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidDate is returned for dates that cannot be represented or parsed.
var ErrInvalidDate = errors.New("invalid date")

const (
	// JDN of the day before Meskerem 1, year 0 (Amete Mihret epoch offset).
	epochJDN = 1723856
	// JDN of 1970-01-01.
	unixEpochJDN = 2440588
	// Meskerem 1, year 1
	minJDN = epochJDN + 365

	secondsPerDay = 24 * 60 * 60
)

type Month int

const (
	Meskerem Month = 1 + iota
	Tikimt
	Hidar
	Tahsas
	Tir
	Yekatit
	Megabit
	Miazia
	Ginbot
	Sene
	Hamle
	Nehasse
	Pagume
)

var monthNames = [...]string{
	"Meskerem", "Tikimt", "Hidar", "Tahsas", "Tir", "Yekatit", "Megabit",
	"Miazia", "Ginbot", "Sene", "Hamle", "Nehasse", "Pagume",
}

func (m Month) String() string {
	if m >= Meskerem && m <= Pagume {
		return monthNames[m-1]
	}
	return fmt.Sprintf("%%!Month(%d)", int(m))
}

// Date is a day of the Ethiopian calendar.
type Date struct {
	Year  int
	Month Month
	Day   int
}

// IsLeapYear reports whether Pagume of year y has 6 days.
func IsLeapYear(y int) bool {
	return y%4 == 3
}

// DaysInMonth returns the number of days of month m in year y.
func DaysInMonth(y int, m Month) int {
	if m != Pagume {
		return 30
	}
	if IsLeapYear(y) {
		return 6
	}
	return 5
}

func (d Date) Validate() error {
	if d.Year < 1 {
		return errors.Wrapf(ErrInvalidDate, "year %d", d.Year)
	}
	if d.Month < Meskerem || d.Month > Pagume {
		return errors.Wrapf(ErrInvalidDate, "month %d", int(d.Month))
	}
	if d.Day < 1 || d.Day > DaysInMonth(d.Year, d.Month) {
		return errors.Wrapf(ErrInvalidDate, "day %d of %s %d", d.Day, d.Month, d.Year)
	}
	return nil
}

// Label formats the date the way it is shown to users, eg. "Sene 30, 2017".
func (d Date) Label() string {
	return fmt.Sprintf("%s %d, %d", d.Month, d.Day, d.Year)
}

func (d Date) String() string { return d.Label() }

// FromGregorian converts the calendar date of t (in t's location) to the Ethiopian calendar.
func FromGregorian(t time.Time) (Date, error) {
	if t.IsZero() {
		return Date{}, errors.Wrap(ErrInvalidDate, "zero time")
	}
	jdn := gregorianToJDN(t)
	if jdn < minJDN {
		return Date{}, errors.Wrapf(ErrInvalidDate, "%s is before the Ethiopian epoch", t.Format("2006-01-02"))
	}
	return jdnToEthiopic(jdn), nil
}

// Label is a shortcut for FromGregorian(t).Label().
func Label(t time.Time) (string, error) {
	d, err := FromGregorian(t)
	if err != nil {
		return "", err
	}
	return d.Label(), nil
}

// ToGregorian returns midnight UTC of the Gregorian day matching d.
func ToGregorian(d Date) (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}
	jdn := epochJDN + 365*d.Year + d.Year/4 + 30*int(d.Month) + d.Day - 31
	return time.Unix(int64(jdn-unixEpochJDN)*secondsPerDay, 0).UTC(), nil
}

var gregorianLayouts = []string{"2006-01-02", time.RFC3339}

// ParseGregorian parses "2006-01-02" or RFC3339 input.
// Date-only input is interpreted in loc (UTC when nil).
func ParseGregorian(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range gregorianLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "cannot parse %q", s)
}

func gregorianToJDN(t time.Time) int {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix()/secondsPerDay) + unixEpochJDN
}

func jdnToEthiopic(jdn int) Date {
	days := jdn - epochJDN
	r := days % 1461
	n := r%365 + 365*(r/1460)
	return Date{
		Year:  4*(days/1461) + r/365 - r/1460,
		Month: Month(n/30 + 1),
		Day:   n%30 + 1,
	}
}
