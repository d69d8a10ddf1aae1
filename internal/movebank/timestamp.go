package movebank

import (
	"fmt"
	"strings"
	"time"
)

// compactTimestampLen is the length of Movebank's native timestamp form,
// yyyyMMddHHmmssSSS (millisecond precision since epoch components).
const compactTimestampLen = 17

var timestampFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp converts a date/time string to Movebank's compact
// form. Accepted inputs: YYYY-MM-DD, YYYY-MM-DD HH:MM, YYYY-MM-DD
// HH:MM:SS, or an already-compact digit string of at least second
// precision, which is zero-padded to milliseconds. An empty string means
// "unbounded" and passes through unchanged.
func NormalizeTimestamp(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	stripped := strings.NewReplacer(" ", "", "-", "", ":", "").Replace(value)
	if isDigits(stripped) && len(stripped) >= 14 && len(stripped) <= compactTimestampLen {
		return stripped + strings.Repeat("0", compactTimestampLen-len(stripped)), nil
	}

	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.Format("20060102150405") + "000", nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
