package fields

import (
	"strconv"
	"strings"
	"unicode"
)

var sizeUnits = map[string]float64{
	"GB": gibibyte,
	"MB": mebibyte,
	"KB": kibibyte,
	"B":  1,
}

// ParseSize reverses FormatSize, returning the number of bytes
// represented by a string such as "12.34 MB".
func ParseSize(display string) (float64, bool) {
	parts := strings.Fields(display)
	if len(parts) != 2 {
		return 0, false
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	multiplier, ok := sizeUnits[parts[1]]
	if !ok {
		return 0, false
	}

	return value * multiplier, true
}

// ParseDuration reverses FormatDuration, accepting "MM:SS" or "HH:MM:SS"
// and returning the number of seconds.
func ParseDuration(display string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(display), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, false
		}

		total = total*60 + v
	}

	return total, true
}

// ParseBitrate reverses FormatBitrate, returning the leading number of a
// string such as "3.50 Mbps" (in Mbps).
func ParseBitrate(display string) (float64, bool) {
	parts := strings.Fields(display)
	if len(parts) == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// ParseFrameRate reverses FormatFrameRate.
func ParseFrameRate(display string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(display), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// ParseHumanDuration parses shorthand durations such as "1h30m", "90min",
// "2h15s" or "45" in to seconds. Each number must be followed by one of
// 'h', 'm'/'min' or 's', except the last which defaults to seconds.
func ParseHumanDuration(s string) (float64, bool) {
	runes := []rune(strings.ToLower(strings.TrimSpace(s)))
	if len(runes) == 0 {
		return 0, false
	}

	total := 0.0
	number := strings.Builder{}
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if unicode.IsDigit(c) || c == '.' {
			number.WriteRune(c)
			continue
		}

		value, err := strconv.ParseFloat(number.String(), 64)
		if err != nil {
			return 0, false
		}
		number.Reset()

		switch c {
		case 'h':
			total += value * 3600
		case 'm':
			if i+2 < len(runes) && runes[i+1] == 'i' && runes[i+2] == 'n' {
				i += 2
			}
			total += value * 60
		case 's':
			total += value
		default:
			return 0, false
		}
	}

	if number.Len() > 0 {
		value, err := strconv.ParseFloat(number.String(), 64)
		if err != nil {
			return 0, false
		}
		total += value
	}

	return total, true
}
