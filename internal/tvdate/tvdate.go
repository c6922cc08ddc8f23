// Package tvdate implements the calendar value used throughout the grabber.
//
// A Date always holds a valid UTC calendar instant. The UTC offset is kept
// alongside it purely as display metadata: it is applied when a Date is
// rendered in XMLTV form and never takes part in comparisons.
package tvdate

import (
	"errors"
	"fmt"
	"time"
)

const (
	minYear = 1000
	maxYear = 3000

	// MaxOffset bounds SetOffset in both directions (12 hours).
	MaxOffset = 43200

	// anchorYear is the reference year for weekday counting. 1 January 2000
	// was a Saturday, which weekdayShift reproduces.
	anchorYear   = 2000
	weekdayShift = 6
)

var (
	// ErrYearRange is returned when a mutation leaves the year outside 1000-3000.
	ErrYearRange = errors.New("tvdate: year outside 1000-3000")
	// ErrOffsetRange is returned by SetOffset for offsets beyond ±12 hours.
	ErrOffsetRange = errors.New("tvdate: utc offset outside ±43200 seconds")
	// ErrFormat is returned when a string does not match the requested format.
	ErrFormat = errors.New("tvdate: malformed date")
)

var (
	monthNames       = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	weekdayNames     = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	weekdayLongNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	monthDays        = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
)

// Date is a UTC-normalised calendar instant with an attached UTC offset.
// The zero value is not meaningful; use New, Now, FromTime or Parse.
type Date struct {
	year   int
	mon    int
	yday   int
	mday   int
	wday   int
	hour   int
	min    int
	sec    int
	offUTC int
}

// New builds a Date from UTC fields, carrying any overflow. The offset is 0.
func New(year, mon, mday, hour, min, sec int) (Date, error) {
	var d Date
	if err := d.SetTime(year, mon, mday, hour, min, sec); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Now returns the current instant with the host's local UTC offset attached.
func Now() Date {
	return FromTime(time.Now())
}

// FromTime converts t to a Date, keeping t's zone offset as display metadata.
func FromTime(t time.Time) Date {
	_, off := t.Zone()
	u := t.UTC()
	d := Date{
		year:   u.Year(),
		mon:    int(u.Month()),
		mday:   u.Day(),
		hour:   u.Hour(),
		min:    u.Minute(),
		sec:    u.Second(),
		offUTC: off,
	}
	d.normalize()
	return d
}

// Time returns the instant as a time.Time in a fixed zone matching the offset.
func (d Date) Time() time.Time {
	t := time.Date(d.year, time.Month(d.mon), d.mday, d.hour, d.min, d.sec, 0, time.UTC)
	return t.In(time.FixedZone("", d.offUTC))
}

// ─── Getters ──────────────────────────────────────────────────────────────────

func (d Date) Year() int    { return d.year }
func (d Date) Month() int   { return d.mon }
func (d Date) Day() int     { return d.mday }
func (d Date) YearDay() int { return d.yday }
func (d Date) Weekday() int { return d.wday }
func (d Date) Hour() int    { return d.hour }
func (d Date) Minute() int  { return d.min }
func (d Date) Second() int  { return d.sec }

// Offset returns the UTC offset in seconds.
func (d Date) Offset() int { return d.offUTC }

// MonthName returns the three-letter English month name.
func (d Date) MonthName() string { return monthNames[d.mon-1] }

// WeekdayName returns the three-letter English weekday name.
func (d Date) WeekdayName() string { return weekdayNames[d.wday] }

// WeekdayLongName returns the full English weekday name.
func (d Date) WeekdayLongName() string { return weekdayLongNames[d.wday] }

// ─── Setters ──────────────────────────────────────────────────────────────────

// SetYear rejects years outside 1000-3000 without touching the Date.
func (d *Date) SetYear(year int) error {
	if year < minYear || year > maxYear {
		return ErrYearRange
	}
	d.year = year
	return d.normalize()
}

func (d *Date) SetMonth(mon int) error {
	d.mon = mon
	return d.normalize()
}

func (d *Date) SetDay(mday int) error {
	d.mday = mday
	return d.normalize()
}

func (d *Date) SetHour(hour int) error {
	d.hour = hour
	return d.normalize()
}

func (d *Date) SetMinute(min int) error {
	d.min = min
	return d.normalize()
}

func (d *Date) SetSecond(sec int) error {
	d.sec = sec
	return d.normalize()
}

// AddSeconds shifts the instant by n seconds (n may be negative).
func (d *Date) AddSeconds(n int) error {
	return d.SetSecond(d.sec + n)
}

// AddDays shifts the instant by n whole days.
func (d *Date) AddDays(n int) error {
	return d.SetDay(d.mday + n)
}

// SetOffset swaps the display offset only; the instant is left as is.
func (d *Date) SetOffset(off int) error {
	if off < -MaxOffset || off > MaxOffset {
		return ErrOffsetRange
	}
	d.offUTC = off
	return nil
}

// SetTime replaces all UTC fields at once and renormalises.
func (d *Date) SetTime(year, mon, mday, hour, min, sec int) error {
	d.year = year
	d.mon = mon
	d.mday = mday
	d.hour = hour
	d.min = min
	d.sec = sec
	return d.normalize()
}

// Local returns a copy whose UTC fields hold the wall clock at the offset.
// The result is only meant for reading fields back out, not for comparison.
func (d Date) Local() Date {
	lt := d
	_ = lt.AddSeconds(d.offUTC)
	return lt
}

// DayString renders the local calendar day as YYYY-MM-DD.
func (d Date) DayString() string {
	lt := d.Local()
	return fmt.Sprintf("%04d-%02d-%02d", lt.year, lt.mon, lt.mday)
}

// ─── Comparison ───────────────────────────────────────────────────────────────

// Compare returns -1, 0 or +1. The offset is ignored.
func (d Date) Compare(o Date) int {
	for _, p := range [...][2]int{
		{d.year, o.year}, {d.mon, o.mon}, {d.mday, o.mday},
		{d.hour, o.hour}, {d.min, o.min}, {d.sec, o.sec},
	} {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// String renders the Date in RFC 1123 form.
func (d Date) String() string { return d.Format(RFC822) }

// ─── Normalisation ────────────────────────────────────────────────────────────

// normalize carries overflow from seconds up to years, then recomputes the
// derived day-of-year and day-of-week.
func (d *Date) normalize() error {
	d.min += d.sec / 60
	d.sec %= 60
	if d.sec < 0 {
		d.min--
		d.sec += 60
	}

	d.hour += d.min / 60
	d.min %= 60
	if d.min < 0 {
		d.hour--
		d.min += 60
	}

	d.mday += d.hour / 24
	d.hour %= 24
	if d.hour < 0 {
		d.mday--
		d.hour += 24
	}

	d.normalizeMonth()

	for d.mday > daysInMonth(d.year, d.mon) {
		d.mday -= daysInMonth(d.year, d.mon)
		if d.mon++; d.mon > 12 {
			d.mon -= 12
			d.year++
		}
	}
	for d.mday < 1 {
		if d.mon--; d.mon < 1 {
			d.mon += 12
			d.year--
		}
		d.mday += daysInMonth(d.year, d.mon)
	}

	d.normalizeMonth()

	if d.year < minYear || d.year > maxYear {
		return ErrYearRange
	}

	d.yday = d.mday - 1
	for m := 1; m < d.mon; m++ {
		d.yday += daysInMonth(d.year, m)
	}

	d.wday = weekday(d.year, d.yday)
	return nil
}

func (d *Date) normalizeMonth() {
	d.year += (d.mon - 1) / 12
	d.mon = (d.mon-1)%12 + 1
	if d.mon < 1 {
		d.year--
		d.mon += 12
	}
}

// weekday counts whole years between year and the anchor, then reduces.
func weekday(year, yday int) int {
	days := yday
	y := year
	for y > anchorYear {
		y--
		days += daysInYear(y)
	}
	for y < anchorYear {
		days -= daysInYear(y)
		y++
	}
	w := (days + weekdayShift) % 7
	if w < 0 {
		w += 7
	}
	return w
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInYear(year int) int {
	if isLeap(year) {
		return 366
	}
	return 365
}

func daysInMonth(year, mon int) int {
	if mon == 2 && isLeap(year) {
		return 29
	}
	return monthDays[mon]
}
