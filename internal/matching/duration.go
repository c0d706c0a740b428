package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/crossfade/internal/shared"
)

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration converts an ISO-8601 duration such as "PT3M53S" to milliseconds.
func ParseISODuration(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	m := isoDurationRe.FindStringSubmatch(trimmed)
	if m == nil || trimmed == "P" || trimmed == "PT" {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}

	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.ParseFloat(m[4], 64)

	total := float64(((days*24+hours)*60+minutes)*60)*1000 + seconds*1000
	return int(total), nil
}

// ParseClockDuration converts "m:ss" or "h:mm:ss" to milliseconds.
func ParseClockDuration(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
		}
		total = total*60 + n
	}
	return total * 1000, nil
}

// FormatDuration renders milliseconds as "m:ss", or "h:mm:ss" past an hour.
func FormatDuration(ms int) string {
	secs := max(ms, 0) / 1000
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
