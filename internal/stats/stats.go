// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/cwchanap/virgo/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Judgement weights for the weighted accuracy score. A perfect counts in
// full, the lesser tiers fractionally, a miss not at all.
const (
	weightPerfect = 1.0
	weightGreat   = 0.7
	weightGood    = 0.4
)

// ResultMetrics computes notes-per-minute and hit rate for a play session.
func ResultMetrics(hit, miss int, durationMs int64) (npm, hitRate float64) {
	if durationMs <= 0 {
		return 0, 0
	}
	minutes := float64(durationMs) / 60000.0
	if minutes <= 0 {
		return 0, 0
	}
	npm = float64(hit) / minutes
	den := float64(hit + miss)
	if den > 0 {
		hitRate = float64(hit) / den
	}
	return npm, hitRate
}

// DrumAccuracy computes the weighted accuracy of a drum aggregate. A drum
// that was never charted scores perfect, so unplayed drums are not selected
// as weak.
func DrumAccuracy(agg model.DrumAggregate) float64 {
	total := agg.Perfect + agg.Great + agg.Good + agg.Miss
	if total == 0 {
		return 1.0
	}
	score := weightPerfect*float64(agg.Perfect) +
		weightGreat*float64(agg.Great) +
		weightGood*float64(agg.Good)
	return score / float64(total)
}

// DrumHitRate computes the fraction of the drum's notes that were hit at all.
func DrumHitRate(agg model.DrumAggregate) float64 {
	total := agg.Perfect + agg.Great + agg.Good + agg.Miss
	if total == 0 {
		return 0
	}
	return float64(agg.Perfect+agg.Great+agg.Good) / float64(total)
}

// DrumAvgErrorMs computes the mean absolute timing error of the drum's
// matched hits.
func DrumAvgErrorMs(agg model.DrumAggregate) float64 {
	if agg.ErrorCount == 0 {
		return 0
	}
	return agg.ErrorSumMs / float64(agg.ErrorCount)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary table for play sessions.
func RenderSummary(w io.Writer, results []model.ResultAggregate) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No plays found.")
		return err
	}
	var totalNPM, totalRate float64
	bestNPM := 0.0
	bestRate := 0.0
	for _, r := range results {
		npm, rate := ResultMetrics(r.Hit, r.Miss, r.DurationMs)
		totalNPM += npm
		totalRate += rate
		if npm > bestNPM {
			bestNPM = npm
		}
		if rate > bestRate {
			bestRate = rate
		}
	}
	count := float64(len(results))
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Plays: %d\n", len(results)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg NPM: %.2f\n", totalNPM/count); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Best NPM: %.2f\n", bestNPM); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg Hit Rate: %.2f%%\n", (totalRate/count)*100); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Best Hit Rate: %.2f%%\n", bestRate*100); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderCurves prints progress curves for NPM and hit rate.
func RenderCurves(w io.Writer, results []model.ResultAggregate, window int) error {
	return RenderCurvesWithSize(w, results, window, 0, 10, false)
}

// RenderCurvesWithSize prints progress curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, results []model.ResultAggregate, window, totalWidth, height int, useColor bool) error {
	if len(results) == 0 {
		return nil
	}
	npms := make([]float64, len(results))
	rates := make([]float64, len(results))
	for i, r := range results {
		npm, rate := ResultMetrics(r.Hit, r.Miss, r.DurationMs)
		npms[i] = npm
		rates[i] = rate * 100
	}
	npms = MovingAverage(npms, window)
	rates = MovingAverage(rates, window)

	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Progress Curves", []Series{
		{Name: "NPM", Values: npms},
		{Name: "Hit Rate", Values: rates},
	}, width, height, useColor)
}

// RenderDrumTable prints per-drum aggregates, weakest first.
func RenderDrumTable(w io.Writer, aggs []model.DrumAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No drum stats found.")
		return err
	}
	sorted := make([]model.DrumAggregate, len(aggs))
	copy(sorted, aggs)
	sort.Slice(sorted, func(i, j int) bool {
		ai := DrumAccuracy(sorted[i])
		aj := DrumAccuracy(sorted[j])
		if ai == aj {
			return sorted[i].Drum < sorted[j].Drum
		}
		return ai < aj
	})

	if _, err := fmt.Fprintln(w, "Per-Drum (Windowed)"); err != nil {
		return err
	}

	headers := []string{"Drum", "Accuracy", "Hit Rate", "Avg Error (ms)", "Perfect", "Great", "Good", "Miss"}
	tableRows := make([][]string, 0, len(sorted))
	for _, agg := range sorted {
		tableRows = append(tableRows, []string{
			agg.Drum,
			fmt.Sprintf("%.1f%%", DrumAccuracy(agg)*100),
			fmt.Sprintf("%.1f%%", DrumHitRate(agg)*100),
			fmt.Sprintf("%.1f", DrumAvgErrorMs(agg)),
			fmt.Sprintf("%d", agg.Perfect),
			fmt.Sprintf("%d", agg.Great),
			fmt.Sprintf("%d", agg.Good),
			fmt.Sprintf("%d", agg.Miss),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	lines := formatTable(headers, tableRows, rightAlign)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderDrumCurves prints per-drum progress curves.
func RenderDrumCurves(w io.Writer, results []model.ResultAggregate, perResult map[int64]map[string]model.DrumAggregate, drums []string, window int) error {
	return RenderDrumCurvesWithSize(w, results, perResult, drums, window, 0, 10, false)
}

// RenderDrumCurvesWithSize prints per-drum progress curves sized to a given
// total width.
func RenderDrumCurvesWithSize(w io.Writer, results []model.ResultAggregate, perResult map[int64]map[string]model.DrumAggregate, drums []string, window, totalWidth, height int, useColor bool) error {
	if len(drums) == 0 || len(results) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Drum Curves"); err != nil {
		return err
	}
	for _, drum := range drums {
		accSeries := make([]float64, len(results))
		errSeries := make([]float64, len(results))
		for i, r := range results {
			if data, ok := perResult[r.ResultID]; ok {
				if agg, ok := data[drum]; ok {
					accSeries[i] = DrumAccuracy(agg) * 100
					errSeries[i] = DrumAvgErrorMs(agg)
				}
			}
		}
		accSeries = MovingAverage(accSeries, window)
		errSeries = MovingAverage(errSeries, window)
		width := 0
		if totalWidth > 0 {
			width = PlotWidthFor(totalWidth)
		}
		if err := PlotSeriesWithColor(w, fmt.Sprintf("Drum %s", drum), []Series{
			{Name: "Accuracy", Values: accSeries},
			{Name: "Error", Values: errSeries},
		}, width, height, useColor); err != nil {
			return err
		}
	}
	return nil
}
