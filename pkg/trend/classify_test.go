package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

func TestClassifyEmptySeries(t *testing.T) {
	got := Classify(nil)
	assert.Equal(t, Default(), got)
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, workflow.DirectionStable, got.Direction)
	assert.Equal(t, 0.0, got.AvgInterest)
	assert.Equal(t, "insufficient data", got.Signal)
}

func TestClassifyTooFewPoints(t *testing.T) {
	got := Classify([]float64{10, 20, 30, 40, 50})
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, workflow.DirectionStable, got.Direction)
	assert.Equal(t, 30.0, got.AvgInterest)
	assert.Equal(t, "insufficient data points", got.Signal)
}

func TestClassifySixIdenticalValuesIsStable(t *testing.T) {
	got := Classify([]float64{40, 40, 40, 40, 40, 40})
	assert.Equal(t, 10, got.Score)
	assert.Equal(t, workflow.DirectionStable, got.Direction)
	assert.Equal(t, 40.0, got.AvgInterest)
	assert.Equal(t, 0.0, got.GrowthPct)
}

func TestClassifyRising(t *testing.T) {
	got := Classify([]float64{10, 10, 15, 15, 30, 30})
	assert.Equal(t, 20, got.Score)
	assert.Equal(t, workflow.DirectionUp, got.Direction)
	assert.InDelta(t, 18.333, got.AvgInterest, 0.001)
}

func TestClassifyDeclining(t *testing.T) {
	got := Classify([]float64{50, 50, 40, 40, 20, 20})
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, workflow.DirectionDown, got.Direction)
}

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		end  float64
		want workflow.Direction
	}{
		{116, workflow.DirectionUp},
		{114, workflow.DirectionStable},
		{86, workflow.DirectionStable},
		{84, workflow.DirectionDown},
	}
	for _, tc := range cases {
		got := Classify([]float64{100, 100, 0, 0, tc.end, tc.end})
		assert.Equal(t, tc.want, got.Direction, "end=%v", tc.end)
	}
}

func TestClassifyRemainderStaysInMiddle(t *testing.T) {
	// n=8, third=2: first [0:2], last [6:8]; samples 2..5 are ignored.
	got := Classify([]float64{10, 10, 90, 90, 90, 90, 10, 10})
	assert.Equal(t, workflow.DirectionStable, got.Direction)
	assert.Equal(t, 10, got.Score)
}

func TestClassifyIsDeterministic(t *testing.T) {
	series := []float64{3, 8, 12, 7, 25, 31, 44, 52, 40}
	first := Classify(series)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(series))
	}
}

func TestGrowthPct(t *testing.T) {
	assert.Equal(t, 100.0, growthPct([]float64{10, 10, 20, 20}))
	assert.Equal(t, -50.0, growthPct([]float64{20, 20, 10, 10}))
	assert.Equal(t, 0.0, growthPct([]float64{0, 0, 10, 10}))
}

func TestEstimateMonthlyVolume(t *testing.T) {
	assert.Equal(t, 5000, EstimateMonthlyVolume("Slack Automation", 50))
	assert.Equal(t, 7500, EstimateMonthlyVolume("AI agents", 50))
	assert.Equal(t, 2500, EstimateMonthlyVolume("n8n", 50))
	assert.Equal(t, 0, EstimateMonthlyVolume("n8n", 0))
}
