// Package composition implements the composition loader and validator
// (spec component C3): parsing a declarative graph description (JSON,
// JSON-with-comments, or YAML) into a validated, immutable in-memory
// Composition, aggregating every validation error rather than stopping at
// the first (Testable Property #1).
package composition

// Composition is the immutable, validated graph root.
type Composition struct {
	Models       map[string]Model
	Architecture []Node
	Functions    map[string]Function
	Secrets      map[string]SecretSource
}

// ModelType enumerates the wire-level shape of a Model. "external" is the
// only type dialed at request time; "docker" and "huggingface" are the two
// concrete shapes of spec.md's abstract "spawnable" category (see
// SPEC_FULL.md SUPPLEMENTED FEATURES, grounded on original_source's
// ModelDefinition tagged union).
type ModelType string

const (
	ModelExternal    ModelType = "external"
	ModelDocker      ModelType = "docker"
	ModelHuggingface ModelType = "huggingface"
)

// Model describes one named chat-completion endpoint, or a not-yet-runnable
// spawnable model carried through the control plane for inventory/manifest
// purposes only.
type Model struct {
	Type      ModelType
	Interface string // "chat-completion" for external models
	URL       string
	APIKey    string // may itself be a "$secrets.name.var" reference

	// Docker/Huggingface fields, carried but never dialed in-process.
	Image        string
	RegistryURL  string
	Params       string
	HFRepo       string
	HFToken      string
	Runner       string
}

// AdapterType enumerates a Node's transport.
type AdapterType string

const (
	AdapterChatCompletion AdapterType = "chat-completion"
	AdapterOutput         AdapterType = "output"
	AdapterWebSocket      AdapterType = "websocket"
)

// Node is a vertex in the composition graph.
type Node struct {
	Name         string
	Layer        *int
	Model        string // model name reference; empty for output nodes
	Adapter      AdapterType
	UseCase      string
	Context      string
	If           string
	OutputTo     []string // layer numbers (as decimal strings) or node names
	HooksPre     []Hook
	HooksPost    []Hook
	BindAddr     string
	BindPort     int
	ExtraOptions map[string]any
}

// ModelOverride returns extra-options.model_override if present.
func (n Node) ModelOverride() (string, bool) {
	v, ok := n.ExtraOptions["model_override"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// UseHeaderKeys returns extra-options.UseHeaderKeys if present, as a list
// of inbound HTTP header names to bind into the variable environment.
func (n Node) UseHeaderKeys() []string {
	v, ok := n.ExtraOptions["UseHeaderKeys"]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// HookMode distinguishes fire-and-forget from blocking hooks.
type HookMode string

const (
	HookObserve   HookMode = "observe"
	HookTransform HookMode = "transform"
)

// OnFailure is the disposition of a failed transform hook.
type OnFailure string

const (
	OnFailureContinue OnFailure = "continue"
	OnFailureAbort    OnFailure = "abort"
)

// Hook is an external-function invocation attached pre/post a node.
type Hook struct {
	Function  string
	Mode      HookMode
	OnFailure OnFailure
	If        string
}

// FunctionKind enumerates the Function tagged union.
type FunctionKind string

const (
	FunctionREST       FunctionKind = "rest"
	FunctionShell      FunctionKind = "shell"
	FunctionWebSocket  FunctionKind = "websocket"
	FunctionGRPC       FunctionKind = "grpc"
)

// Function is a named, reusable external effect.
type Function struct {
	Kind FunctionKind
	Name string

	// REST
	Method  string
	URL     string
	Headers map[string]string
	Body    any

	// Shell
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string

	// WebSocket
	WSURL     string
	WSHeaders map[string]string
	Message   any

	// gRPC
	Address string
	Service string
	GRPCMethod string
	Request any

	Timeout int // seconds; 0 means "use default" (30s)
}

// SecretSourceKind enumerates the SecretSource tagged union.
type SecretSourceKind string

const (
	SecretSourceEnvFile SecretSourceKind = "envfile"
	SecretSourceEnv     SecretSourceKind = "env"
	SecretSourceVault   SecretSourceKind = "vault"
)

// SecretSource describes where a named secret set's variables come from.
type SecretSource struct {
	Kind SecretSourceKind
	Name string

	// EnvFile
	Path      string
	Variables []string // allow-list; empty means "all available"

	// Env
	Variable string

	// Vault
	Address      string
	VaultPath    string
	TokenEnv     string // defaults to VAULT_TOKEN
}
