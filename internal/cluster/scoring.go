package cluster

// ScoringWeights determines how much each resource dimension contributes
// to a node's composite score. Weights should sum to approximately 1.0.
type ScoringWeights struct {
	CPU    float64
	Memory float64
	GPU    float64
	Disk   float64
	Load   float64
}

// DefaultScoringWeights matches the original cluster scheduler's weighting.
var DefaultScoringWeights = ScoringWeights{CPU: 0.20, Memory: 0.25, GPU: 0.30, Disk: 0.10, Load: 0.15}

func (w ScoringWeights) redistributeForNoGPU() ScoringWeights {
	share := w.GPU / 4
	return ScoringWeights{
		CPU:    w.CPU + share,
		Memory: w.Memory + share,
		GPU:    0,
		Disk:   w.Disk + share,
		Load:   w.Load + share,
	}
}

// Score computes a node's composite availability score (0-100, higher is
// more available) from its self-reported metrics.
func Score(m NodeMetrics, hasGPU bool, weights ScoringWeights) float64 {
	cpuScore := clamp100(100 - m.CPUUsagePercent)
	memoryScore := clamp100(100 - m.MemoryUsagePercent)
	diskScore := clamp100(100 - m.DiskUsagePercent)
	loadScore := 100 / (1 + float64(m.ActiveRequests)*0.1)

	w := weights
	var gpuScore float64
	if !hasGPU {
		w = w.redistributeForNoGPU()
	} else if m.GPUUsagePercent != nil {
		gpuScore = clamp100(100 - *m.GPUUsagePercent)
	} else {
		gpuScore = 100
	}

	total := cpuScore*w.CPU + memoryScore*w.Memory + diskScore*w.Disk + loadScore*w.Load + gpuScore*w.GPU
	return clamp100(total)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
