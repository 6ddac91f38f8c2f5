package cluster

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// DefaultHeartbeatThreshold is how long a worker can go without a
// heartbeat before the reaper marks it Unknown, then NotReady.
const DefaultHeartbeatThreshold = 30 * time.Second

// Registry holds the control plane's pipeline and worker-node tables.
// Reads take the read lock and see an immutable snapshot; every mutation
// holds the write lock for the single record it touches, per spec.md §5.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[PipelineKey]*Pipeline
	nodes     map[string]*WorkerNode
	logger    *slog.Logger
}

// NewRegistry builds an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pipelines: map[PipelineKey]*Pipeline{},
		nodes:     map[string]*WorkerNode{},
		logger:    logger,
	}
}

// PutPipeline inserts or replaces a pipeline record.
func (r *Registry) PutPipeline(p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Key()] = p
}

// GetPipeline returns a copy-free pointer to the stored record, or
// ErrNotFound.
func (r *Registry) GetPipeline(namespace, name string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[PipelineKey{Namespace: namespace, Name: name}]
	if !ok {
		return nil, pipelineerr.New(pipelineerr.KindNotFound, "pipeline "+namespace+"/"+name+" not found")
	}
	return p, nil
}

// DeletePipeline removes a pipeline record.
func (r *Registry) DeletePipeline(namespace, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := PipelineKey{Namespace: namespace, Name: name}
	if _, ok := r.pipelines[key]; !ok {
		return pipelineerr.New(pipelineerr.KindNotFound, "pipeline "+namespace+"/"+name+" not found")
	}
	delete(r.pipelines, key)
	return nil
}

// ListPipelines returns every stored pipeline record.
func (r *Registry) ListPipelines() []*Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Scale updates a pipeline's desired replica count and reschedules
// placements across Ready nodes.
func (r *Registry) Scale(namespace, name string, replicas int) (*Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := PipelineKey{Namespace: namespace, Name: name}
	p, ok := r.pipelines[key]
	if !ok {
		return nil, pipelineerr.New(pipelineerr.KindNotFound, "pipeline "+namespace+"/"+name+" not found")
	}
	p.DesiredReplicas = replicas
	r.reschedule(p)
	return p, nil
}

// RegisterNode adds or updates a worker node, resetting its heartbeat.
func (r *Registry) RegisterNode(n *WorkerNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.LastHeartbeat = time.Now()
	n.Status = NodeReady
	r.nodes[n.Name] = n
}

// Heartbeat refreshes a node's last-heartbeat timestamp and metrics,
// recomputing its score.
func (r *Registry) Heartbeat(name string, metrics NodeMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[name]
	if !ok {
		return pipelineerr.New(pipelineerr.KindNotFound, "node "+name+" not registered")
	}
	n.LastHeartbeat = time.Now()
	n.Metrics = metrics
	n.Score = Score(metrics, n.HasGPU, DefaultScoringWeights)
	n.Status = NodeReady
	return nil
}

// RemoveNode unregisters a worker node. Reports whether it was present.
func (r *Registry) RemoveNode(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; !ok {
		return false
	}
	delete(r.nodes, name)
	return true
}

// ListNodes returns every registered worker node.
func (r *Registry) ListNodes() []*WorkerNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WorkerNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReapExpired marks nodes whose heartbeat exceeds threshold as Unknown,
// and nodes already Unknown beyond twice the threshold as NotReady. It is
// intended to run periodically from a background timer.
func (r *Registry) ReapExpired(threshold time.Duration) {
	if threshold <= 0 {
		threshold = DefaultHeartbeatThreshold
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.nodes {
		age := now.Sub(n.LastHeartbeat)
		switch {
		case age > 2*threshold:
			if n.Status != NodeNotReady {
				n.Status = NodeNotReady
				r.logger.Warn("worker node marked not-ready", "node", n.Name, "age", age)
			}
		case age > threshold:
			if n.Status == NodeReady {
				n.Status = NodeUnknown
				r.logger.Warn("worker node marked unknown", "node", n.Name, "age", age)
			}
		}
	}
}

// reschedule assigns DesiredReplicas placements across the score-sorted
// Ready node list via round robin. Must be called with mu held.
func (r *Registry) reschedule(p *Pipeline) {
	ready := make([]*WorkerNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Status == NodeReady {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Score > ready[j].Score })

	placements := map[string]string{}
	if len(ready) > 0 {
		for i := 0; i < p.DesiredReplicas; i++ {
			node := ready[i%len(ready)]
			placements[replicaID(p, i)] = node.Name
		}
	}
	p.ReplicaPlacements = placements
	p.ReadyReplicas = len(placements)
	switch {
	case len(ready) == 0 && p.DesiredReplicas > 0:
		p.Status = PipelineUnknown
	case p.ReadyReplicas < p.DesiredReplicas:
		p.Status = PipelinePending
	default:
		p.Status = PipelineRunning
	}
}

func replicaID(p *Pipeline, i int) string {
	return p.Namespace + "/" + p.Name + "-" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
