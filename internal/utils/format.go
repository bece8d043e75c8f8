// Package utils holds the console's shared helpers: formatting, debouncing,
// file validation and retry.
package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals, e.g. "0 Bytes", "1.5 KB", "16 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := 0
	v := float64(bytes)
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// ParseDate parses the timestamp formats the backend is known to emit.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a backend timestamp for display in local time.
// Unparseable input is returned unchanged and empty input renders as "-".
func FormatDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "-"
	}
	t, ok := ParseDate(raw)
	if !ok {
		return raw
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

// FormatPercent renders a 0-100 score.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64) + "%"
}

// Truncate shortens s to max runes, ending in "…" when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
