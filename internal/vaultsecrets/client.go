// Package vaultsecrets fetches the engine's own Binance API
// credentials from HashiCorp Vault, grounded on the teacher's
// internal/vault client but trimmed from a per-user credential store
// to a single-tenant one: this engine runs as one paper-trading
// process against one Binance account, not a multi-user SaaS.
package vaultsecrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config mirrors the teacher's VaultConfig shape, trimmed of the
// per-user secret-path template.
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string // KV v2 mount, e.g. "secret"
	SecretPath string // e.g. "cryptosignal-engine/binance"
	TLSEnabled bool
	CACert     string
}

// Credentials is the Binance API key pair read from or written to Vault.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	IsTestnet bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault KV v2 client for the engine's
// single credential pair, with a local cache so a disabled or
// unreachable Vault still lets the engine run from whatever was last
// fetched (or stored via Put in a dev/test setup).
type Client struct {
	client *api.Client
	cfg    Config

	mu    sync.RWMutex
	cache *Credentials
}

// New builds a Client. When cfg.Enabled is false, the client never
// talks to Vault and Get/Put operate purely on the local cache --
// useful for local runs where credentials come from the environment.
func New(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return &Client{cfg: cfg}, nil
	}

	vaultCfg := api.DefaultConfig()
	vaultCfg.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultCfg.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("configure vault tls: %w", err)
		}
	}

	raw, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	raw.SetToken(cfg.Token)

	return &Client{client: raw, cfg: cfg}, nil
}

// Get returns the Binance credentials, preferring Vault when enabled
// and falling back to the local cache on a read failure so a
// transient Vault outage doesn't stop the engine from starting with
// whatever it last saw.
func (c *Client) Get(ctx context.Context) (Credentials, error) {
	if !c.cfg.Enabled {
		return c.cached()
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.path())
	if err != nil {
		if cached, ok := c.tryCached(); ok {
			return cached, nil
		}
		return Credentials{}, fmt.Errorf("read binance credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("no binance credentials stored at %s", c.path())
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("unexpected vault secret shape at %s", c.path())
	}

	creds := Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
		IsTestnet: getBool(data, "is_testnet"),
	}

	c.mu.Lock()
	c.cache = &creds
	c.mu.Unlock()

	return creds, nil
}

// Put writes credentials to Vault (and the local cache). Used by
// operator tooling to rotate the key pair; the live engine only reads.
func (c *Client) Put(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	c.cache = &creds
	c.mu.Unlock()

	if !c.cfg.Enabled {
		return nil
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.path(), map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"secret_key": creds.SecretKey,
			"is_testnet": creds.IsTestnet,
		},
	})
	if err != nil {
		return fmt.Errorf("write binance credentials to vault: %w", err)
	}
	return nil
}

func (c *Client) path() string {
	return fmt.Sprintf("%s/data/%s", c.cfg.MountPath, c.cfg.SecretPath)
}

func (c *Client) cached() (Credentials, error) {
	if cached, ok := c.tryCached(); ok {
		return cached, nil
	}
	return Credentials{}, fmt.Errorf("no binance credentials cached and vault is disabled")
}

func (c *Client) tryCached() (Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cache == nil {
		return Credentials{}, false
	}
	return *c.cache, true
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
