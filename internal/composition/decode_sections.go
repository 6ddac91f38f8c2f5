package composition

import (
	"fmt"

	"github.com/polisai/polis-oss/internal/pipelineerr"
)

func decodeModel(m map[string]any, path string, verrs *pipelineerr.ValidationErrors) (Model, bool) {
	typ, _ := fieldString(m, "type")
	if typ == "" {
		typ = string(ModelExternal)
	}
	model := Model{Type: ModelType(typ)}
	switch model.Type {
	case ModelExternal:
		model.Interface, _ = fieldString(m, "interface")
		if model.Interface == "" {
			model.Interface = "chat-completion"
		}
		model.URL, _ = fieldString(m, "url")
		model.APIKey, _ = fieldString(m, "api_key")
		if model.URL == "" {
			verrs.Add(path, "url", "external model requires a url")
			return model, false
		}
	case ModelDocker:
		model.Image, _ = fieldString(m, "image")
		model.RegistryURL, _ = fieldString(m, "registry_url")
		model.Params, _ = fieldString(m, "params")
		if model.Image == "" {
			verrs.Add(path, "image", "docker model requires an image")
			return model, false
		}
	case ModelHuggingface:
		model.HFRepo, _ = fieldString(m, "url")
		model.HFToken, _ = fieldString(m, "hf_pat")
		model.Runner, _ = fieldString(m, "runner")
		if model.HFRepo == "" || model.Runner == "" {
			verrs.Add(path, "", "huggingface model requires url and runner")
			return model, false
		}
	default:
		verrs.Addf(path, "type", "unknown model type %q", typ)
		return model, false
	}
	return model, true
}

func decodeNode(m map[string]any, path string, verrs *pipelineerr.ValidationErrors) (Node, bool) {
	var n Node
	n.Name, _ = fieldString(m, "name")
	if layer, ok := fieldInt(m, "layer"); ok {
		n.Layer = &layer
	}
	n.Model, _ = fieldString(m, "model")
	adapter, _ := fieldString(m, "adapter")
	if adapter == "" {
		adapter = string(AdapterChatCompletion)
	}
	n.Adapter = AdapterType(adapter)
	switch n.Adapter {
	case AdapterChatCompletion, AdapterOutput, AdapterWebSocket:
	default:
		verrs.Addf(path, "adapter", "unknown adapter %q", adapter)
		return n, false
	}
	n.UseCase, _ = fieldString(m, "use_case")
	n.Context, _ = fieldString(m, "context")
	n.If, _ = fieldString(m, "if")
	n.OutputTo = fieldStringSlice(m, "output_to")
	n.BindAddr, _ = fieldString(m, "bind_addr")
	n.BindPort, _ = fieldInt(m, "bind_port")
	if extra, ok := fieldMap(m, "extra_options"); ok {
		n.ExtraOptions = extra
	}

	if hooksRaw, ok := fieldMap(m, "hooks"); ok {
		if preRaw, ok := fieldSlice(hooksRaw, "pre"); ok {
			n.HooksPre = decodeHookList(preRaw, path+".hooks.pre", verrs)
		}
		if postRaw, ok := fieldSlice(hooksRaw, "post"); ok {
			n.HooksPost = decodeHookList(postRaw, path+".hooks.post", verrs)
		}
	}
	return n, true
}

func decodeHookList(raw []any, path string, verrs *pipelineerr.ValidationErrors) []Hook {
	var out []Hook
	for i, item := range raw {
		m, ok := asMap(item)
		if !ok {
			verrs.Addf(path, fmt.Sprintf("[%d]", i), "hook must be an object")
			continue
		}
		var h Hook
		h.Function, _ = fieldString(m, "function")
		mode, _ := fieldString(m, "mode")
		h.Mode = HookMode(mode)
		if h.Mode != HookObserve && h.Mode != HookTransform {
			verrs.Addf(path, fmt.Sprintf("[%d].mode", i), "mode must be observe or transform, got %q", mode)
			continue
		}
		onFailure, ok := fieldString(m, "on_failure")
		if !ok {
			onFailure = string(OnFailureContinue)
		}
		h.OnFailure = OnFailure(onFailure)
		if h.OnFailure != OnFailureContinue && h.OnFailure != OnFailureAbort {
			verrs.Addf(path, fmt.Sprintf("[%d].on_failure", i), "on_failure must be continue or abort, got %q", onFailure)
			continue
		}
		h.If, _ = fieldString(m, "if")
		if h.Function == "" {
			verrs.Addf(path, fmt.Sprintf("[%d].function", i), "hook requires a function reference")
			continue
		}
		out = append(out, h)
	}
	return out
}

func decodeFunction(m map[string]any, name, path string, verrs *pipelineerr.ValidationErrors) (Function, bool) {
	kind, _ := fieldString(m, "type")
	fn := Function{Kind: FunctionKind(kind), Name: name}
	fn.Timeout, _ = fieldInt(m, "timeout")
	switch fn.Kind {
	case FunctionREST:
		fn.Method, _ = fieldString(m, "method")
		if fn.Method == "" {
			fn.Method = "GET"
		}
		fn.URL, _ = fieldString(m, "url")
		fn.Headers = fieldStringMap(m, "headers")
		fn.Body, _ = field(m, "body")
		if fn.URL == "" {
			verrs.Add(path, "url", "rest function requires a url")
			return fn, false
		}
	case FunctionShell:
		fn.Command, _ = fieldString(m, "command")
		fn.Args = fieldStringSlice(m, "args")
		fn.Env = fieldStringMap(m, "env")
		fn.Cwd, _ = fieldString(m, "cwd")
		if fn.Command == "" {
			verrs.Add(path, "command", "shell function requires a command")
			return fn, false
		}
	case FunctionWebSocket:
		fn.WSURL, _ = fieldString(m, "url")
		fn.WSHeaders = fieldStringMap(m, "headers")
		fn.Message, _ = field(m, "message")
		if fn.WSURL == "" {
			verrs.Add(path, "url", "websocket function requires a url")
			return fn, false
		}
	case FunctionGRPC:
		fn.Address, _ = fieldString(m, "address")
		fn.Service, _ = fieldString(m, "service")
		fn.GRPCMethod, _ = fieldString(m, "method")
		fn.Request, _ = field(m, "request")
		if fn.Address == "" || fn.Service == "" || fn.GRPCMethod == "" {
			verrs.Add(path, "", "grpc function requires address, service, and method")
			return fn, false
		}
	default:
		verrs.Addf(path, "type", "unknown function type %q", kind)
		return fn, false
	}
	return fn, true
}

func decodeSecretSource(m map[string]any, name, path string, verrs *pipelineerr.ValidationErrors) (SecretSource, bool) {
	kind, _ := fieldString(m, "type")
	src := SecretSource{Kind: SecretSourceKind(kind), Name: name}
	switch src.Kind {
	case SecretSourceEnvFile:
		src.Path, _ = fieldString(m, "path")
		src.Variables = fieldStringSlice(m, "variables")
		if src.Path == "" {
			verrs.Add(path, "path", "envfile secret source requires a path")
			return src, false
		}
	case SecretSourceEnv:
		src.Variable, _ = fieldString(m, "variable")
		if src.Variable == "" {
			verrs.Add(path, "variable", "env secret source requires a variable")
			return src, false
		}
	case SecretSourceVault:
		src.Address, _ = fieldString(m, "address")
		src.VaultPath, _ = fieldString(m, "path")
		src.Variables = fieldStringSlice(m, "variables")
		src.TokenEnv, _ = fieldString(m, "token_env")
		if src.TokenEnv == "" {
			src.TokenEnv = "VAULT_TOKEN"
		}
		if src.Address == "" || src.VaultPath == "" {
			verrs.Add(path, "", "vault secret source requires address and path")
			return src, false
		}
	default:
		verrs.Addf(path, "type", "unknown secret source type %q", kind)
		return src, false
	}
	return src, true
}
