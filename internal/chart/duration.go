package chart

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDurationString converts an authored "m:ss" track length to seconds.
func ParseDurationString(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return float64(minutes*60 + seconds), nil
}

// DeriveDurationSeconds computes a track length from the chart's highest
// measure number, with one trailing measure so the final notes stay inside
// the judging window. The scan is over all notes, so the result does not
// depend on note order.
func DeriveDurationSeconds(c *Chart) float64 {
	if c.BPM <= 0 {
		return 0
	}
	maxMeasure := c.MaxMeasure()
	if maxMeasure == 0 {
		return 0
	}
	return float64(maxMeasure+1) * c.TimeSig.SecondsPerMeasure(c.BPM)
}

// TrackDurationSeconds resolves the effective track length: the authored
// duration string wins when present and non-zero, otherwise the length is
// derived from the chart.
func TrackDurationSeconds(authored string, c *Chart) float64 {
	if authored != "" {
		if secs, err := ParseDurationString(authored); err == nil && secs > 0 {
			return secs
		}
	}
	return DeriveDurationSeconds(c)
}
