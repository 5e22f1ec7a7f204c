package internal

import (
	"fmt"
	"regexp"
	"strconv"
)

// Years and months have no fixed length and are not matched.
var isoDurationRE = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:[.,]\d+)?S)?)?$`)

// DurationSeconds parses an ISO-8601 video duration such as PT1H2M3S or P1W2D.
// Fractional seconds are truncated. Strings that do not match yield zero.
func DurationSeconds(iso string) int {
	m := isoDurationRE.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	weeks, days, hours, minutes, seconds := atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5])
	return (((weeks*7+days)*24+hours)*60+minutes)*60 + seconds
}

// FormatDuration renders an ISO-8601 duration as HH:MM:SS, or MM:SS below one hour
func FormatDuration(iso string) string {
	return formatSeconds(DurationSeconds(iso))
}

func formatSeconds(total int) string {
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
