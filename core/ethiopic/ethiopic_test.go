package ethiopic

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gregorian(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// month starts of 2017 E.C. (Sep 11, 2024 - Sep 10, 2025) + the 2015 leap day
var referenceTable = []struct {
	greg time.Time
	want Date
}{
	{greg: gregorian(2024, time.September, 11), want: Date{2017, Meskerem, 1}},
	{greg: gregorian(2024, time.October, 11), want: Date{2017, Tikimt, 1}},
	{greg: gregorian(2024, time.November, 10), want: Date{2017, Hidar, 1}},
	{greg: gregorian(2024, time.December, 10), want: Date{2017, Tahsas, 1}},
	{greg: gregorian(2025, time.January, 9), want: Date{2017, Tir, 1}},
	{greg: gregorian(2025, time.February, 8), want: Date{2017, Yekatit, 1}},
	{greg: gregorian(2025, time.March, 10), want: Date{2017, Megabit, 1}},
	{greg: gregorian(2025, time.April, 9), want: Date{2017, Miazia, 1}},
	{greg: gregorian(2025, time.May, 9), want: Date{2017, Ginbot, 1}},
	{greg: gregorian(2025, time.June, 8), want: Date{2017, Sene, 1}},
	{greg: gregorian(2025, time.July, 8), want: Date{2017, Hamle, 1}},
	{greg: gregorian(2025, time.August, 7), want: Date{2017, Nehasse, 1}},
	{greg: gregorian(2025, time.September, 6), want: Date{2017, Pagume, 1}},
	{greg: gregorian(2025, time.September, 10), want: Date{2017, Pagume, 5}},
	{greg: gregorian(2025, time.September, 11), want: Date{2018, Meskerem, 1}},
	// leap year: 2015 % 4 == 3
	{greg: gregorian(2023, time.September, 11), want: Date{2015, Pagume, 6}},
	{greg: gregorian(2023, time.September, 12), want: Date{2016, Meskerem, 1}},
	{greg: gregorian(2025, time.July, 7), want: Date{2017, Sene, 30}},
	{greg: gregorian(2000, time.January, 1), want: Date{1992, Tahsas, 22}},
}

func TestFromGregorian(t *testing.T) {
	for _, tt := range referenceTable {
		t.Run(tt.greg.Format("2006-01-02"), func(t *testing.T) {
			got, err := FromGregorian(tt.greg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToGregorian_roundTrip(t *testing.T) {
	for _, tt := range referenceTable {
		t.Run(tt.want.Label(), func(t *testing.T) {
			got, err := ToGregorian(tt.want)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.greg), "ToGregorian(%v) = %v; want %v", tt.want, got, tt.greg)
		})
	}
}

func TestFromGregorian_wholeYearIsConsistent(t *testing.T) {
	start := gregorian(2024, time.September, 11)
	prev, err := FromGregorian(start)
	require.NoError(t, err)

	for day := 1; day < 2*366; day++ {
		greg := start.AddDate(0, 0, day)
		got, err := FromGregorian(greg)
		require.NoError(t, err)
		require.NoError(t, got.Validate())

		// each day advances by exactly one, rolling over month and year
		switch {
		case got.Day == prev.Day+1:
			assert.Equal(t, prev.Month, got.Month)
			assert.Equal(t, prev.Year, got.Year)
		case got.Day == 1 && got.Month == prev.Month+1:
			assert.Equal(t, DaysInMonth(prev.Year, prev.Month), prev.Day)
			assert.Equal(t, prev.Year, got.Year)
		case got.Day == 1 && got.Month == Meskerem:
			assert.Equal(t, Pagume, prev.Month)
			assert.Equal(t, DaysInMonth(prev.Year, Pagume), prev.Day)
			assert.Equal(t, prev.Year+1, got.Year)
		default:
			t.Fatalf("%s: %v does not follow %v", greg.Format("2006-01-02"), got, prev)
		}

		// Gregorian year - Ethiopian year is 7 or 8
		offset := greg.Year() - got.Year
		assert.True(t, offset == 7 || offset == 8, "offset %d for %s", offset, greg.Format("2006-01-02"))
		prev = got
	}
}

func TestFromGregorian_usesLocalCalendarDay(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)
	// 2025-07-06 22:30 UTC is already 2025-07-07 in Addis Ababa
	ts := time.Date(2025, time.July, 7, 1, 30, 0, 0, eat)

	got, err := Label(ts)
	require.NoError(t, err)
	assert.Equal(t, "Sene 30, 2017", got)

	got, err = Label(ts.UTC())
	require.NoError(t, err)
	assert.Equal(t, "Sene 29, 2017", got)
}

func TestFromGregorian_invalid(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
	}{
		{name: "zero time", t: time.Time{}},
		{name: "before epoch", t: gregorian(5, time.January, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGregorian(tt.t)
			assert.True(t, errors.Is(err, ErrInvalidDate), "FromGregorian() error = %v, want ErrInvalidDate", err)
		})
	}
}

func TestDate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		date    Date
		wantErr bool
	}{
		{name: "valid", date: Date{2017, Sene, 30}},
		{name: "leap Pagume 6", date: Date{2015, Pagume, 6}},
		{name: "non-leap Pagume 6", date: Date{2017, Pagume, 6}, wantErr: true},
		{name: "day 31", date: Date{2017, Tir, 31}, wantErr: true},
		{name: "day 0", date: Date{2017, Tir, 0}, wantErr: true},
		{name: "month 14", date: Date{2017, 14, 1}, wantErr: true},
		{name: "year 0", date: Date{0, Meskerem, 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.date.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidDate))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseGregorian(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "date only", in: "2025-07-07", want: "Sene 30, 2017"},
		{name: "rfc3339", in: "2025-07-07T10:07:00+03:00", want: "Sene 30, 2017"},
		{name: "padded", in: " 2024-09-11 ", want: "Meskerem 1, 2017"},
		{name: "garbage", in: "lol", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "impossible day", in: "2025-02-30", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseGregorian(tt.in, eat)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidDate), "ParseGregorian() error = %v", err)
				return
			}
			require.NoError(t, err)
			got, err := Label(ts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonth_String(t *testing.T) {
	assert.Equal(t, "Meskerem", Meskerem.String())
	assert.Equal(t, "Pagume", Pagume.String())
	assert.Equal(t, "%!Month(0)", Month(0).String())
}
