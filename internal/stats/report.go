// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/cwchanap/virgo/internal/model"
	"github.com/cwchanap/virgo/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Results         []model.ResultAggregate
	WindowResultIDs []int64
	DrumAggsAll     []model.DrumAggregate
	DrumAggsWindow  []model.DrumAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	results, err := st.ListResults(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(results) > cfg.Last {
		results = results[len(results)-cfg.Last:]
	}

	allIDs := resultIDs(results)
	windowIDs := lastResultIDs(results, cfg.CurveWindow)
	drumAggsAll, err := st.ListDrumAggregatesForResults(ctx, allIDs)
	if err != nil {
		return Report{}, err
	}
	drumAggsWindow, err := st.ListDrumAggregatesForResults(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Results:         results,
		WindowResultIDs: windowIDs,
		DrumAggsAll:     drumAggsAll,
		DrumAggsWindow:  drumAggsWindow,
	}, nil
}

func resultIDs(results []model.ResultAggregate) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ResultID
	}
	return ids
}

func lastResultIDs(results []model.ResultAggregate, window int) []int64 {
	if window <= 0 || len(results) <= window {
		return resultIDs(results)
	}
	return resultIDs(results[len(results)-window:])
}
