package trend

import (
	"fmt"
	"math"
	"strings"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

const (
	// MinSamples is the shortest series that gets a direction.
	MinSamples = 6

	risingFactor    = 1.15
	decliningFactor = 0.85

	scoreUp     = 20
	scoreStable = 10
	scoreDown   = 5
)

// Trend is the classified search-interest trajectory of a keyword.
type Trend struct {
	Score       int                `json:"trend_score"`
	Direction   workflow.Direction `json:"trend_direction"`
	AvgInterest float64            `json:"avg_interest"`
	Signal      string             `json:"signal"`

	GrowthPct     float64 `json:"growth_pct"`
	MonthlyVolume int     `json:"monthly_search_volume"`
}

// Default is the fail-open trend used when no usable data exists.
func Default() Trend {
	return Trend{
		Score:     scoreDown,
		Direction: workflow.DirectionStable,
		Signal:    "insufficient data",
	}
}

// Classify derives a trend from a search-interest series (0-100 values).
// It is a pure function of values.
func Classify(values []float64) Trend {
	if len(values) == 0 {
		return Default()
	}

	avg := mean(values)
	if len(values) < MinSamples {
		return Trend{
			Score:       scoreDown,
			Direction:   workflow.DirectionStable,
			AvgInterest: avg,
			Signal:      "insufficient data points",
		}
	}

	third := len(values) / 3
	startAvg := mean(values[:third])
	endAvg := mean(values[len(values)-third:])

	t := Trend{
		AvgInterest: avg,
		GrowthPct:   growthPct(values),
	}
	switch {
	case endAvg > startAvg*risingFactor:
		t.Score, t.Direction = scoreUp, workflow.DirectionUp
		t.Signal = fmt.Sprintf("rising (start %.1f, end %.1f)", startAvg, endAvg)
	case endAvg < startAvg*decliningFactor:
		t.Score, t.Direction = scoreDown, workflow.DirectionDown
		t.Signal = fmt.Sprintf("declining (start %.1f, end %.1f)", startAvg, endAvg)
	default:
		t.Score, t.Direction = scoreStable, workflow.DirectionStable
		t.Signal = fmt.Sprintf("stable (start %.1f, end %.1f)", startAvg, endAvg)
	}
	return t
}

// growthPct compares the recent half of the series with the early half,
// rounded to one decimal. A zero early half yields 0.
func growthPct(values []float64) float64 {
	mid := len(values) / 2
	early := mean(values[:mid])
	recent := mean(values[mid:])
	if early == 0 {
		return 0
	}
	return math.Round((recent-early)/early*1000) / 10
}

// baseVolumes are rough monthly search volumes by keyword category, checked
// in order.
var baseVolumes = []struct {
	match  string
	volume int
}{
	{"automation", 10000},
	{"workflow", 8000},
	{"integration", 12000},
	{"ai", 15000},
}

const defaultBaseVolume = 5000

// EstimateMonthlyVolume scales a keyword's base volume by its average
// interest.
func EstimateMonthlyVolume(keyword string, avgInterest float64) int {
	base := defaultBaseVolume
	kw := strings.ToLower(keyword)
	for _, b := range baseVolumes {
		if strings.Contains(kw, b.match) {
			base = b.volume
			break
		}
	}
	return int(avgInterest / 100 * float64(base))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
