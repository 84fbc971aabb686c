package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseDuration converts "H:MM" or "H:MM:SS" into a duration. Minute and
// second components over 59 carry over ("8:75" is 9h15m). It returns nil for
// empty input, the literal tokens "Oui"/"Non" (any case) and anything
// unparseable: absent is distinct from an explicit zero duration.
func ParseDuration(raw string) *time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "oui", "non":
		return nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}

	var h, m, sec int
	var err error
	if h, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return nil
	}
	if m, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return nil
	}
	if len(parts) == 3 {
		if sec, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return nil
		}
	}
	// Components may overflow their usual range: "8:75" reads as 9h15m,
	// matching how the badge system exports accumulated durations.
	if h < 0 || m < 0 || sec < 0 {
		return nil
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	return &d
}

// ParseDecimalOrZero converts a decimal string using either "." or "," as
// separator. Empty or unparseable input collapses to zero: absence-hour
// fields default to "no absence".
func ParseDecimalOrZero(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseOuiNon reports whether the cell holds the literal "Oui" in any case.
// Everything else, including garbage, is false.
func ParseOuiNon(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "oui")
}

// ParseClock normalizes a clock-in/out cell to "HH:MM:SS". Returns nil when
// the cell is empty or not a time of day. The value is display-only.
func ParseClock(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			v := t.Format("15:04:05")
			return &v
		}
	}
	return nil
}

// ParseDayFirstDate parses a day-first calendar date (DD/MM/YYYY). Unlike the
// cell parsers above this one errors: a row without a valid date cannot be
// keyed and aborts the import.
func ParseDayFirstDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid day-first date %q", s)
}

// FormatDuration renders a duration as H:MM:SS, the form used in anomaly
// detail messages (20 minutes -> "0:20:00").
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
