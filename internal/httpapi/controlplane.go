package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/polisai/polis-oss/internal/cluster"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// ControlPlane serves the cluster management REST API described in
// spec.md §6's method/path table: pipeline and node CRUD plus status.
type ControlPlane struct {
	Registry *cluster.Registry
	Logger   *slog.Logger
}

// NewControlPlane builds a ControlPlane bound to reg.
func NewControlPlane(reg *cluster.Registry, logger *slog.Logger) *ControlPlane {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlPlane{Registry: reg, Logger: logger}
}

// Mux builds the control-plane's http.ServeMux.
func (c *ControlPlane) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /v1/status", c.handleStatus)
	mux.HandleFunc("GET /v1/namespaces", c.handleListNamespaces)
	mux.HandleFunc("GET /v1/pipelines", c.handleListPipelines)
	mux.HandleFunc("POST /v1/pipelines", c.handleDeployPipeline)
	mux.HandleFunc("DELETE /v1/pipelines/{namespace}/{name}", c.handleDeletePipeline)
	mux.HandleFunc("PATCH /v1/pipelines/{namespace}/{name}", c.handleScalePipeline)
	mux.HandleFunc("GET /v1/nodes", c.handleListNodes)
	mux.HandleFunc("POST /v1/nodes", c.handleRegisterNode)
	mux.HandleFunc("DELETE /v1/nodes/{name}", c.handleUnregisterNode)
	mux.HandleFunc("POST /v1/nodes/{name}/heartbeat", c.handleHeartbeat)
	return mux
}

type statusResponse struct {
	NodesReady       int `json:"nodesReady"`
	NodesTotal       int `json:"nodesTotal"`
	PipelinesReady   int `json:"pipelinesReady"`
	PipelinesTotal   int `json:"pipelinesTotal"`
	NamespaceCount   int `json:"namespaceCount"`
}

func (c *ControlPlane) handleStatus(w http.ResponseWriter, r *http.Request) {
	nodes := c.Registry.ListNodes()
	pipelines := c.Registry.ListPipelines()

	resp := statusResponse{NodesTotal: len(nodes), PipelinesTotal: len(pipelines)}
	namespaces := map[string]struct{}{}
	for _, n := range nodes {
		if n.Status == cluster.NodeReady {
			resp.NodesReady++
		}
	}
	for _, p := range pipelines {
		if p.Status == cluster.PipelineRunning {
			resp.PipelinesReady++
		}
		namespaces[p.Namespace] = struct{}{}
	}
	resp.NamespaceCount = len(namespaces)
	writeJSON(w, http.StatusOK, resp)
}

func (c *ControlPlane) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range c.Registry.ListPipelines() {
		if _, ok := seen[p.Namespace]; !ok {
			seen[p.Namespace] = struct{}{}
			out = append(out, p.Namespace)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type pipelineView struct {
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace"`
	DesiredReplicas int               `json:"desiredReplicas"`
	ReadyReplicas   int               `json:"readyReplicas"`
	Status          string            `json:"status"`
	Placements      map[string]string `json:"placements"`
}

func toPipelineView(p *cluster.Pipeline) pipelineView {
	return pipelineView{
		Name:            p.Name,
		Namespace:       p.Namespace,
		DesiredReplicas: p.DesiredReplicas,
		ReadyReplicas:   p.ReadyReplicas,
		Status:          string(p.Status),
		Placements:      p.ReplicaPlacements,
	}
}

func (c *ControlPlane) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	all := r.URL.Query().Get("all") == "true"

	var out []pipelineView
	for _, p := range c.Registry.ListPipelines() {
		if !all && namespace != "" && p.Namespace != namespace {
			continue
		}
		out = append(out, toPipelineView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// pipelineManifest is the deploy request body: either a full manifest
// (apiVersion/kind/metadata/spec) or a bare Composition, per spec.md §6.
type pipelineManifest struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Metadata   struct {
		Name      string            `json:"name"`
		Namespace string            `json:"namespace"`
		Labels    map[string]string `json:"labels"`
	} `json:"metadata"`
	Spec struct {
		Replicas    int            `json:"replicas"`
		Port        int            `json:"port"`
		Composition map[string]any `json:"composition"`
	} `json:"spec"`
}

func (c *ControlPlane) handleDeployPipeline(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, pipelineerr.New(pipelineerr.KindAdapterFailure, "failed to read request body"))
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, pipelineerr.Wrap(pipelineerr.KindCompositionParse, err, "malformed manifest"))
		return
	}

	var name, namespace string
	var replicas int
	var compRaw map[string]any

	if kind, _ := raw["kind"].(string); kind == "Pipeline" {
		var manifest pipelineManifest
		if err := json.Unmarshal(body, &manifest); err != nil {
			writeError(w, pipelineerr.Wrap(pipelineerr.KindCompositionParse, err, "malformed pipeline manifest"))
			return
		}
		name = manifest.Metadata.Name
		namespace = manifest.Metadata.Namespace
		replicas = manifest.Spec.Replicas
		compRaw = manifest.Spec.Composition
	} else {
		// Bare composition: name and namespace come from query params, the
		// basename convention is a CLI-side concern (the CLI sets the
		// query param from the file basename before POSTing).
		name = r.URL.Query().Get("name")
		namespace = r.URL.Query().Get("namespace")
		replicas = 1
		compRaw = raw
	}
	if namespace == "" {
		namespace = "default"
	}
	if replicas <= 0 {
		replicas = 1
	}
	if name == "" {
		writeError(w, pipelineerr.New(pipelineerr.KindCompositionValidation, "pipeline manifest requires metadata.name"))
		return
	}

	compBytes, err := json.Marshal(compRaw)
	if err != nil {
		writeError(w, pipelineerr.Wrap(pipelineerr.KindCompositionParse, err, "re-encode composition body"))
		return
	}
	comp, err := composition.Parse(string(compBytes), name+".json")
	if err != nil {
		writeError(w, err)
		return
	}

	p := &cluster.Pipeline{Name: name, Namespace: namespace, Composition: comp, DesiredReplicas: replicas}
	c.Registry.PutPipeline(p)
	updated, err := c.Registry.Scale(namespace, name, replicas)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPipelineView(updated))
}

func (c *ControlPlane) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	name := r.PathValue("name")
	if err := c.Registry.DeletePipeline(namespace, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scaleRequest struct {
	Replicas int `json:"replicas"`
}

func (c *ControlPlane) handleScalePipeline(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	name := r.PathValue("name")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, pipelineerr.New(pipelineerr.KindAdapterFailure, "failed to read request body"))
		return
	}
	var req scaleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "malformed scale request"))
		return
	}

	p, err := c.Registry.Scale(namespace, name, req.Replicas)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPipelineView(p))
}

type nodeView struct {
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Status        string  `json:"status"`
	Score         float64 `json:"score"`
	LastHeartbeat string  `json:"lastHeartbeat"`
}

func toNodeView(n *cluster.WorkerNode) nodeView {
	return nodeView{
		Name:          n.Name,
		Address:       n.Address,
		Status:        string(n.Status),
		Score:         n.Score,
		LastHeartbeat: n.LastHeartbeat.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (c *ControlPlane) handleListNodes(w http.ResponseWriter, r *http.Request) {
	var out []nodeView
	for _, n := range c.Registry.ListNodes() {
		out = append(out, toNodeView(n))
	}
	writeJSON(w, http.StatusOK, out)
}

type registerNodeRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	HasGPU  bool   `json:"hasGpu"`
}

func (c *ControlPlane) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, pipelineerr.New(pipelineerr.KindAdapterFailure, "failed to read request body"))
		return
	}
	var req registerNodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, pipelineerr.Wrap(pipelineerr.KindAdapterFailure, err, "malformed node registration"))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" {
		writeError(w, pipelineerr.New(pipelineerr.KindCompositionValidation, "node registration requires name and address"))
		return
	}
	c.Registry.RegisterNode(&cluster.WorkerNode{Name: req.Name, Address: req.Address, HasGPU: req.HasGPU})
	w.WriteHeader(http.StatusCreated)
}

func (c *ControlPlane) handleUnregisterNode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !c.Registry.RemoveNode(name) {
		writeError(w, pipelineerr.New(pipelineerr.KindNotFound, "node "+name+" not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ControlPlane) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var metrics cluster.NodeMetrics
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if len(body) > 0 {
		_ = json.Unmarshal(body, &metrics)
	}

	if err := c.Registry.Heartbeat(name, metrics); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
