package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// VaultConfig points at one KV secret whose keys are exported as
// environment variables before configuration is loaded
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
}

// VaultResult reports how many keys were exported
type VaultResult struct {
	Path    string
	Loaded  int
	Skipped int
}

// LoadVaultConfigFromEnv reads VAULT_* variables. KV v2 and a 5s timeout
// are the defaults.
func LoadVaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     os.Getenv("VAULT_MOUNT"),
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

type kvEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// ApplyVaultSecrets fetches the secret and exports each key. Existing
// variables win unless Overwrite is set. A disabled config is a no-op.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Addr, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		client.SetHeader("X-Vault-Namespace", cfg.Namespace)
	}

	var envelope kvEnvelope
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get(secretPath(cfg))
	if err != nil {
		return result, fmt.Errorf("vault fetch failed: %w", err)
	}
	if resp.IsError() {
		return result, fmt.Errorf("vault fetch failed: %s %s", resp.Status(), strings.TrimSpace(resp.String()))
	}

	data, err := secretData(envelope, cfg.KVVersion)
	if err != nil {
		return result, err
	}

	for key, value := range data {
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped++
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return result, err
		}
		result.Loaded++
	}
	return result, nil
}

func secretPath(cfg VaultConfig) string {
	mount := strings.Trim(cfg.Mount, "/")
	path := strings.TrimLeft(cfg.Path, "/")
	if cfg.KVVersion == 1 {
		return "/v1/" + mount + "/" + path
	}
	return "/v1/" + mount + "/data/" + path
}

// secretData unwraps the extra data level KV v2 adds
func secretData(envelope kvEnvelope, kvVersion int) (map[string]any, error) {
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("vault response missing data for KV v%d", kvVersion)
	}
	if kvVersion == 1 {
		var data map[string]any
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("decode vault data: %w", err)
		}
		return data, nil
	}

	var inner struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(envelope.Data, &inner); err != nil {
		return nil, fmt.Errorf("decode vault data: %w", err)
	}
	if inner.Data == nil {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return inner.Data, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
