package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Civil-day arithmetic at a fixed UTC offset. The host clock may run
// in any zone; all "today" / "tomorrow" decisions shift the UTC
// instant by the academy's offset and read the date from that. DST is
// deliberately not handled: the deployment region uses a fixed offset.

// LocalYMD returns the civil date at the given offset for the instant now.
func LocalYMD(now time.Time, offsetHours int) (year int, month time.Month, day int) {
	local := now.UTC().Add(time.Duration(offsetHours) * time.Hour)
	return local.Date()
}

// LocalDayString renders the civil date as YYYY-MM-DD, the form stored
// in ledger rows for per-day scope keys.
func LocalDayString(now time.Time, offsetHours int) string {
	y, m, d := LocalYMD(now, offsetHours)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// LocalDayRange returns the UTC instants [start, end] covering the
// local civil day addDays days after the one containing now. end is
// the last representable instant inside the day, matching inclusive
// BETWEEN-style queries.
func LocalDayRange(now time.Time, offsetHours int, addDays int) (start, end time.Time) {
	y, m, d := LocalYMD(now, offsetHours)
	// Local midnight expressed as a UTC instant.
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).
		Add(-time.Duration(offsetHours) * time.Hour).
		AddDate(0, 0, addDays)
	end = start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}

var (
	birthDateSlash = regexp.MustCompile(`^([0-3]?\d)/([0-1]?\d)/(\d{4})$`)
	birthDateISO   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// ParseBirthDate accepts the two formats found in stored profiles,
// DD/MM/YYYY and YYYY-MM-DD. The year is returned but birthday
// matching ignores it.
func ParseBirthDate(value string) (day, month, year int, ok bool) {
	if m := birthDateSlash.FindStringSubmatch(value); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else if m := birthDateISO.FindStringSubmatch(value); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		return 0, 0, 0, false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year == 0 {
		return 0, 0, 0, false
	}
	return day, month, year, true
}
