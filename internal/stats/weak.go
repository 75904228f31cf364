package stats

import (
	"sort"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/model"
)

// SelectWeakDrums selects the lowest-accuracy drums from aggregates. Rows
// whose drum name no longer parses are skipped.
func SelectWeakDrums(aggs []model.DrumAggregate, top int) map[chart.DrumType]struct{} {
	weakSet := map[chart.DrumType]struct{}{}
	if len(aggs) == 0 {
		return weakSet
	}
	candidates := make([]model.DrumAggregate, len(aggs))
	copy(candidates, aggs)
	sort.Slice(candidates, func(i, j int) bool {
		ai := DrumAccuracy(candidates[i])
		aj := DrumAccuracy(candidates[j])
		if ai == aj {
			return candidates[i].Drum < candidates[j].Drum
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for i := 0; i < top; i++ {
		drum, err := chart.ParseDrumType(candidates[i].Drum)
		if err != nil {
			continue
		}
		weakSet[drum] = struct{}{}
	}
	return weakSet
}
