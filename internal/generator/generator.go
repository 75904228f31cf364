// Package generator builds practice drum charts.
package generator

import (
	"math/rand"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// stepsPerMeasure is the sixteenth-note grid practice charts are written on.
const stepsPerMeasure = 16

// Generator produces randomized practice charts.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithSeed returns a Generator with a fixed seed, for reproducible charts.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate lays notes on a sixteenth-note grid, drawing drums uniformly from
// the given voices. Density is the fill probability per grid step; the
// downbeat of every measure always carries a note so the groove keeps its
// anchor. The drum list must be non-empty.
func (g *Generator) Generate(measures int, bpm, density float64, drums []chart.DrumType) *chart.Chart {
	c := practiceChart(bpm)
	for m := 1; m <= measures; m++ {
		for step := 0; step < stepsPerMeasure; step++ {
			if step != 0 && g.rnd.Float64() > density {
				continue
			}
			c.Notes = append(c.Notes, chart.Note{
				MeasureNumber: m,
				MeasureOffset: float64(step) / stepsPerMeasure,
				Drum:          drums[g.rnd.Intn(len(drums))],
				Interval:      chart.Sixteenth,
			})
		}
	}
	return c
}

// GenerateWeighted lays out the same grid but draws drums with a bias toward
// the weak set: a weak drum's selection weight is 1+factor against 1 for the
// rest.
func (g *Generator) GenerateWeighted(measures int, bpm, density float64, drums []chart.DrumType, weakSet map[chart.DrumType]struct{}, factor float64) *chart.Chart {
	weights := make([]float64, len(drums))
	total := 0.0
	for i, drum := range drums {
		w := 1.0
		if _, ok := weakSet[drum]; ok {
			w += factor
		}
		weights[i] = w
		total += w
	}

	c := practiceChart(bpm)
	for m := 1; m <= measures; m++ {
		for step := 0; step < stepsPerMeasure; step++ {
			if step != 0 && g.rnd.Float64() > density {
				continue
			}
			r := g.rnd.Float64() * total
			acc := 0.0
			idx := 0
			for j, w := range weights {
				acc += w
				if r <= acc {
					idx = j
					break
				}
			}
			c.Notes = append(c.Notes, chart.Note{
				MeasureNumber: m,
				MeasureOffset: float64(step) / stepsPerMeasure,
				Drum:          drums[idx],
				Interval:      chart.Sixteenth,
			})
		}
	}
	return c
}

func practiceChart(bpm float64) *chart.Chart {
	return &chart.Chart{
		Title:      "Practice",
		BPM:        bpm,
		Difficulty: "practice",
		TimeSig:    chart.DefaultTimeSignature,
	}
}
