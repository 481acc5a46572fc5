package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	kibibyte = 1024
	mebibyte = kibibyte * 1024
	gibibyte = mebibyte * 1024

	ellipsis = "..."
)

// FormatSize formats a decimal byte count using 1024-based thresholds; two
// decimal places for KB/MB/GB and whole bytes below 1 KB. A size which is
// not a non-negative integer produces an empty string.
func FormatSize(size string) string {
	bytes, err := strconv.ParseUint(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return ""
	}

	switch {
	case bytes >= gibibyte:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gibibyte)
	case bytes >= mebibyte:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mebibyte)
	case bytes >= kibibyte:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kibibyte)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatDuration formats a decimal number of seconds as HH:MM:SS, or MM:SS
// when the duration is under an hour. Fractional seconds are truncated.
func FormatDuration(duration string) string {
	secs, err := strconv.ParseFloat(strings.TrimSpace(duration), 64)
	if err != nil || secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return ""
	}

	hours := int64(secs / 3600)
	minutes := int64(math.Mod(secs, 3600) / 60)
	seconds := int64(math.Mod(secs, 60))
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}

	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatFrameRate converts a rational "num/den" frame rate in to a two decimal
// place frame rate. Malformed ratios and zero denominators produce an empty string.
func FormatFrameRate(ratio string) string {
	parts := strings.Split(strings.TrimSpace(ratio), "/")
	if len(parts) != 2 {
		return ""
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return ""
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return ""
	}

	fps := num / den
	if math.IsInf(fps, 0) || math.IsNaN(fps) {
		return ""
	}

	return fmt.Sprintf("%.2f", fps)
}

// FormatBitrate converts a bits/sec decimal string in to Mbps with two
// decimal places.
func FormatBitrate(bitRate string) string {
	bps, err := strconv.ParseFloat(strings.TrimSpace(bitRate), 64)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%.2f Mbps", bps/1_000_000)
}

// BitDepth guesses the bit depth of a video stream from its pixel format. Anything
// that isn't recognisably 10 or 12 bit is assumed to be 8 bit.
func BitDepth(pixelFormat string) string {
	switch {
	case strings.Contains(pixelFormat, "p10"):
		return "10bit"
	case strings.Contains(pixelFormat, "p12"):
		return "12bit"
	default:
		return "8bit"
	}
}

// FormatAudio summarises an audio stream as "<channels>CH", followed by
// the bit rate rounded to the nearest kbps (" 128k") when it is known.
func FormatAudio(channels int, bitRate string) string {
	out := fmt.Sprintf("%dCH", channels)
	if bps, err := strconv.ParseFloat(strings.TrimSpace(bitRate), 64); err == nil {
		out += fmt.Sprintf(" %.0fk", bps/1000)
	}

	return out
}

func FormatResolution(width int, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// TruncateMiddle shortens the string to at most max runes by replacing
// the middle with an ellipsis. The prefix and suffix kept are equal in
// length, with any odd remainder given to the prefix. A max of zero
// disables truncation.
func TruncateMiddle(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}

	if max <= len(ellipsis) {
		return string(runes[:max])
	}

	kept := max - len(ellipsis)
	suffixLen := kept / 2
	prefixLen := kept - suffixLen

	return string(runes[:prefixLen]) + ellipsis + string(runes[len(runes)-suffixLen:])
}

// FormatElapsed formats a run time for progress output: "42s" below
// a minute, "M:SS" otherwise.
func FormatElapsed(d time.Duration) string {
	secs := d.Seconds()
	if secs >= 60 {
		return fmt.Sprintf("%d:%02d", int64(secs/60), int64(math.Mod(secs, 60)))
	}

	return fmt.Sprintf("%ds", int64(secs))
}
