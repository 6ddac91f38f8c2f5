package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/polisai/polis-oss/internal/composition"
)

// vaultHTTPTimeout bounds the startup KV v2 lookup; there is no per-source
// timeout in spec.md for secret loading, so this uses the same default as
// external function calls (spec.md §4.4).
const vaultHTTPTimeout = 30 * time.Second

// kvV2Response is the shape of a HashiCorp Vault KV v2 read response: the
// secret's current values live under data.data.
type kvV2Response struct {
	Data struct {
		Data map[string]string `json:"data"`
	} `json:"data"`
}

// loadVault performs a direct KV v2 HTTP GET. This is implemented against
// net/http rather than a Vault client SDK: spec.md §1 explicitly calls the
// HashiCorp Vault KV v2 client "trivial and uninteresting", and the
// request/response shape needed here is exactly the one-shot GET+JSON this
// function performs.
func loadVault(ctx context.Context, src composition.SecretSource) (map[string]string, error) {
	token := os.Getenv(src.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("vault token env %q is not set", src.TokenEnv)
	}

	url := strings.TrimRight(src.Address, "/") + "/v1/" + strings.TrimLeft(src.VaultPath, "/")
	ctx, cancel := context.WithTimeout(ctx, vaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request to %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault request to %q: status %d", url, resp.StatusCode)
	}

	var body kvV2Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("vault response from %q: %w", url, err)
	}
	return filterAllowList(body.Data.Data, src.Variables), nil
}
