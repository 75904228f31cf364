// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/cwchanap/virgo/internal/model"
)

// TopDrumsByFrequency returns the top N drums by total charted notes.
func TopDrumsByFrequency(aggs []model.DrumAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	type item struct {
		drum  string
		total int
	}
	items := make([]item, 0, len(aggs))
	for _, agg := range aggs {
		items = append(items, item{
			drum:  agg.Drum,
			total: agg.Perfect + agg.Great + agg.Good + agg.Miss,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].total == items[j].total {
			return items[i].drum < items[j].drum
		}
		return items[i].total > items[j].total
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, items[i].drum)
	}
	return out
}
