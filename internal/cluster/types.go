// Package cluster implements the control-plane's in-memory state (spec
// component C11): pipeline records, worker-node registry, heartbeat
// reaping, and round-robin-over-score scheduling.
package cluster

import (
	"time"

	"github.com/polisai/polis-oss/internal/composition"
)

// PipelineStatus is a control-plane Pipeline record's lifecycle state.
type PipelineStatus string

const (
	PipelinePending PipelineStatus = "Pending"
	PipelineRunning PipelineStatus = "Running"
	PipelineUnknown PipelineStatus = "Unknown"
)

// Pipeline is a control-plane record of a deployed composition.
type Pipeline struct {
	Name              string
	Namespace         string
	Composition       *composition.Composition
	DesiredReplicas   int
	ReadyReplicas     int
	ReplicaPlacements map[string]string // replica-id -> node-id
	Status            PipelineStatus
}

// Key identifies a Pipeline by namespace and name.
func (p *Pipeline) Key() PipelineKey {
	return PipelineKey{Namespace: p.Namespace, Name: p.Name}
}

// PipelineKey is the (namespace, name) map key for the pipeline registry.
type PipelineKey struct {
	Namespace string
	Name      string
}

// NodeStatus is a WorkerNode's heartbeat-derived health state.
type NodeStatus string

const (
	NodeReady    NodeStatus = "Ready"
	NodeNotReady NodeStatus = "NotReady"
	NodeUnknown  NodeStatus = "Unknown"
)

// NodeMetrics is the self-reported resource snapshot a worker attaches to
// its heartbeat, used to compute the weighted scheduling score.
type NodeMetrics struct {
	CPUUsagePercent    float64
	MemoryUsagePercent float64
	GPUUsagePercent    *float64
	DiskUsagePercent   float64
	ActiveRequests     int
}

// WorkerNode is a control-plane record of a registered worker.
type WorkerNode struct {
	Name          string
	Address       string
	LastHeartbeat time.Time
	Score         float64
	Status        NodeStatus
	HasGPU        bool
	Metrics       NodeMetrics
}
