package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreHealthyNodeIsHigh(t *testing.T) {
	s := Score(NodeMetrics{CPUUsagePercent: 5, MemoryUsagePercent: 5, DiskUsagePercent: 5, ActiveRequests: 0}, true, DefaultScoringWeights)
	assert.Greater(t, s, 90.0)
}

func TestScoreBusyNodeIsLow(t *testing.T) {
	gpu := 95.0
	s := Score(NodeMetrics{CPUUsagePercent: 95, MemoryUsagePercent: 95, GPUUsagePercent: &gpu, DiskUsagePercent: 95, ActiveRequests: 50}, true, DefaultScoringWeights)
	assert.Less(t, s, 20.0)
}

func TestScoreRedistributesGPUWeightWhenAbsent(t *testing.T) {
	metrics := NodeMetrics{CPUUsagePercent: 10, MemoryUsagePercent: 10, DiskUsagePercent: 10, ActiveRequests: 0}
	withGPU := Score(metrics, true, DefaultScoringWeights)
	withoutGPU := Score(metrics, false, DefaultScoringWeights)
	// With a GPU (usage unreported, so scored 100): 90*0.20 + 90*0.25 +
	// 90*0.10 + 100*0.15 + 100*0.30 = 94.5. Without one, the 0.30 GPU
	// weight is split evenly across the other four dimensions:
	// 90*0.275 + 90*0.325 + 90*0.175 + 100*0.225 = 92.25.
	assert.InDelta(t, 94.5, withGPU, 0.01)
	assert.InDelta(t, 92.25, withoutGPU, 0.01)
}

func TestScoreMissingGPUUsageDefaultsToFull(t *testing.T) {
	metrics := NodeMetrics{CPUUsagePercent: 10, MemoryUsagePercent: 10, DiskUsagePercent: 10, ActiveRequests: 0}
	s := Score(metrics, true, DefaultScoringWeights)
	assert.Greater(t, s, 90.0)
}

func TestScoreClampsToRange(t *testing.T) {
	s := Score(NodeMetrics{CPUUsagePercent: 1000, MemoryUsagePercent: 1000, DiskUsagePercent: 1000, ActiveRequests: 1000}, true, DefaultScoringWeights)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 100.0)
}
