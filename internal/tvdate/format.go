package tvdate

import (
	"fmt"
	"strings"
)

// Kind selects one of the textual date formats understood by Parse and Format.
type Kind int

const (
	// XMLTV is the guide format "19941106184937 +1000".
	XMLTV Kind = iota
	// RFC822 covers RFC 822/1123 dates "Sun, 06 Nov 1994 08:49:37 GMT".
	RFC822
	// RFC850 covers RFC 850/1036 dates "Sunday, 06-Nov-94 08:49:37 GMT".
	RFC850
	// Asctime is the C library form "Sun Nov  6 08:49:37 1994".
	Asctime
)

func (k Kind) String() string {
	switch k {
	case XMLTV:
		return "xmltv"
	case RFC822:
		return "rfc822"
	case RFC850:
		return "rfc850"
	case Asctime:
		return "asctime"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parse reads s in the given format. Fields are fixed width and separators
// must match exactly. Weekday names must be valid names but are not checked
// against the date; the weekday is always recomputed.
func Parse(kind Kind, s string) (Date, error) {
	var (
		d   Date
		err error
	)
	switch kind {
	case XMLTV:
		d, err = parseXMLTV(s)
	case RFC822:
		d, err = parseRFC822(s)
	case RFC850:
		d, err = parseRFC850(s)
	case Asctime:
		d, err = parseAsctime(s)
	default:
		return Date{}, fmt.Errorf("tvdate: unknown format %v", kind)
	}
	if err != nil {
		return Date{}, fmt.Errorf("%w: %s %q", err, kind, s)
	}
	return d, nil
}

// Format renders d. Only XMLTV applies the offset; the HTTP formats are
// always rendered in GMT.
func (d Date) Format(kind Kind) string {
	switch kind {
	case RFC822:
		return fmt.Sprintf("%s, %02d %s %04d %02d:%02d:%02d GMT",
			d.WeekdayName(), d.mday, d.MonthName(), d.year, d.hour, d.min, d.sec)
	case RFC850:
		return fmt.Sprintf("%s, %02d-%s-%02d %02d:%02d:%02d GMT",
			d.WeekdayLongName(), d.mday, d.MonthName(), d.year%100, d.hour, d.min, d.sec)
	case Asctime:
		return fmt.Sprintf("%s %s %2d %02d:%02d:%02d %04d",
			d.WeekdayName(), d.MonthName(), d.mday, d.hour, d.min, d.sec, d.year)
	default:
		lt := d.Local()
		sign := '+'
		off := d.offUTC
		if off < 0 {
			sign = '-'
			off = -off
		}
		return fmt.Sprintf("%04d%02d%02d%02d%02d%02d %c%02d%02d",
			lt.year, lt.mon, lt.mday, lt.hour, lt.min, lt.sec, sign, off/3600, (off/60)%60)
	}
}

// ─── Parsers ──────────────────────────────────────────────────────────────────

func parseXMLTV(s string) (Date, error) {
	var year, mon, mday, hour, min, sec, offHour, offMin int
	if len(s) < 20 ||
		!validNum(s[0:4], &year, minYear, maxYear) ||
		!validNum(s[4:6], &mon, 1, 12) ||
		!validNum(s[6:8], &mday, 1, 31) ||
		!validNum(s[8:10], &hour, 0, 23) ||
		!validNum(s[10:12], &min, 0, 59) ||
		!validNum(s[12:14], &sec, 0, 60) ||
		s[14] != ' ' ||
		(s[15] != '+' && s[15] != '-') ||
		!validNum(s[16:18], &offHour, 0, 12) ||
		!validNum(s[18:20], &offMin, 0, 59) {
		return Date{}, ErrFormat
	}
	return assemble(year, mon, mday, hour, min, sec, zoneOffset(s[15], offHour, offMin))
}

func parseRFC822(s string) (Date, error) {
	var year, mon, mday, hour, min, sec, offHour, offMin int
	if len(s) < 26 ||
		!validWeekday(s[0:3]) ||
		s[3] != ',' || s[4] != ' ' ||
		!validNum(s[5:7], &mday, 1, 31) ||
		s[7] != ' ' ||
		!validMonth(s[8:11], &mon) ||
		s[11] != ' ' ||
		!validNum(s[12:16], &year, minYear, maxYear) ||
		s[16] != ' ' ||
		!validNum(s[17:19], &hour, 0, 23) ||
		s[19] != ':' ||
		!validNum(s[20:22], &min, 0, 59) ||
		s[22] != ':' ||
		!validNum(s[23:25], &sec, 0, 60) ||
		s[25] != ' ' {
		return Date{}, ErrFormat
	}
	off, ok := parseZone(s[26:], &offHour, &offMin)
	if !ok {
		return Date{}, ErrFormat
	}
	return assemble(year, mon, mday, hour, min, sec, off)
}

func parseRFC850(s string) (Date, error) {
	var year, mon, mday, hour, min, sec, offHour, offMin int
	comma := strings.IndexByte(s, ',')
	if comma < 0 || !validWeekday(s[:comma]) {
		return Date{}, ErrFormat
	}
	r := s[comma:]
	if len(r) < 21 ||
		r[0] != ',' || r[1] != ' ' ||
		!validNum(r[2:4], &mday, 1, 31) ||
		r[4] != '-' ||
		!validMonth(r[5:8], &mon) ||
		r[8] != '-' ||
		!validNum(r[9:11], &year, 0, 99) ||
		r[11] != ' ' ||
		!validNum(r[12:14], &hour, 0, 23) ||
		r[14] != ':' ||
		!validNum(r[15:17], &min, 0, 59) ||
		r[17] != ':' ||
		!validNum(r[18:20], &sec, 0, 60) ||
		r[20] != ' ' {
		return Date{}, ErrFormat
	}
	off, ok := parseZone(r[21:], &offHour, &offMin)
	if !ok {
		return Date{}, ErrFormat
	}
	if year < 70 {
		year += 2000
	} else {
		year += 1900
	}
	return assemble(year, mon, mday, hour, min, sec, off)
}

func parseAsctime(s string) (Date, error) {
	var year, mon, mday, hour, min, sec int
	if len(s) < 24 ||
		!validWeekday(s[0:3]) ||
		s[3] != ' ' ||
		!validMonth(s[4:7], &mon) ||
		s[7] != ' ' ||
		!validNum(s[8:10], &mday, 1, 31) ||
		s[10] != ' ' ||
		!validNum(s[11:13], &hour, 0, 23) ||
		s[13] != ':' ||
		!validNum(s[14:16], &min, 0, 59) ||
		s[16] != ':' ||
		!validNum(s[17:19], &sec, 0, 60) ||
		s[19] != ' ' ||
		!validNum(s[20:24], &year, minYear, maxYear) {
		return Date{}, ErrFormat
	}
	return assemble(year, mon, mday, hour, min, sec, 0)
}

// assemble combines local wall-clock fields with their offset into UTC.
func assemble(year, mon, mday, hour, min, sec, off int) (Date, error) {
	d := Date{offUTC: off}
	if err := d.SetTime(year, mon, mday, hour, min, sec-off); err != nil {
		return Date{}, err
	}
	return d, nil
}

// parseZone accepts a numeric "+HHMM"/"-HHMM" suffix or the literal "GMT".
func parseZone(z string, offHour, offMin *int) (int, bool) {
	if len(z) >= 5 && (z[0] == '+' || z[0] == '-') &&
		validNum(z[1:3], offHour, 0, 12) &&
		validNum(z[3:5], offMin, 0, 59) {
		return zoneOffset(z[0], *offHour, *offMin), true
	}
	if strings.HasPrefix(z, "GMT") {
		return 0, true
	}
	return 0, false
}

func zoneOffset(sign byte, hour, min int) int {
	off := (hour*60 + min) * 60
	if sign == '-' {
		return -off
	}
	return off
}

// validNum reads a fixed-width field: optional leading spaces then digits
// filling the rest of the field.
func validNum(field string, num *int, min, max int) bool {
	i := 0
	for i < len(field) && field[i] == ' ' {
		i++
	}
	value := 0
	for i < len(field) && field[i] >= '0' && field[i] <= '9' {
		value = value*10 + int(field[i]-'0')
		i++
	}
	if i != len(field) || value < min || value > max {
		return false
	}
	*num = value
	return true
}

func validWeekday(name string) bool {
	for i := range weekdayNames {
		if name == weekdayNames[i] || name == weekdayLongNames[i] {
			return true
		}
	}
	return false
}

func validMonth(name string, mon *int) bool {
	for i, m := range monthNames {
		if name == m {
			*mon = i + 1
			return true
		}
	}
	return false
}
