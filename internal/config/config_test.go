package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/danmuck/votectl/internal/address"
	"github.com/danmuck/votectl/internal/protocol"
	"github.com/danmuck/votectl/internal/testutil/testlog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfigResolves(t *testing.T) {
	testlog.Start(t)
	r, err := DefaultClientConfig().Resolve()
	if err != nil {
		t.Fatalf("resolve defaults: %v", err)
	}
	if r.ProgramID.String() != DefaultProgramID {
		t.Fatalf("program id = %s", r.ProgramID)
	}
	if r.Schema != protocol.SchemaWindowed || r.Mode != address.ModeScoped || r.Commitment != rpc.CommitmentConfirmed {
		t.Fatalf("unexpected defaults %+v", r)
	}
	if r.Txn.Backoff.InitialDelay != 500*time.Millisecond || r.Txn.Backoff.MaxDelay != 4*time.Second {
		t.Fatalf("unexpected backoff %+v", r.Txn.Backoff)
	}
	if strings.HasPrefix(r.KeypairPath, "~") {
		t.Fatalf("keypair path not expanded: %s", r.KeypairPath)
	}
}

func TestLoadTOMLOverlaysDefaults(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvRPCEndpoint, "")
	t.Setenv(EnvKeypair, "")
	path := writeFile(t, "client.toml", `
rpc_endpoint = "https://api.devnet.solana.com"
schema = "minimal"
derivation = "legacy"
rpc_burst = 2
cors_origins = [" https://votes.example ", ""]
`)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCEndpoint != "https://api.devnet.solana.com" || cfg.Schema != "minimal" || cfg.Derivation != "legacy" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RPCBurst != 2 || cfg.RPCRateLimit != 10 {
		t.Fatalf("numeric overlay wrong: burst=%d rate=%v", cfg.RPCBurst, cfg.RPCRateLimit)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "https://votes.example" {
		t.Fatalf("origins = %v", cfg.CorsOrigins)
	}
	if cfg.ProgramID != DefaultProgramID || cfg.PollInterval != "500ms" {
		t.Fatalf("unset keys must keep defaults: %+v", cfg)
	}
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "client.toml", `rpc_endpont = "typo"`)
	if _, err := LoadClientConfig(path); err == nil || !strings.Contains(err.Error(), "rpc_endpont") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvRPCEndpoint, "")
	t.Setenv(EnvKeypair, "")
	path := writeFile(t, "client.yaml", `
commitment: finalized
poll_interval: 250ms
poll_max_interval: 2s
http_addr: "127.0.0.1:9401"
`)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Commitment != rpc.CommitmentFinalized || r.HTTPAddr != "127.0.0.1:9401" {
		t.Fatalf("unexpected %+v", r)
	}
	if r.Txn.Backoff.InitialDelay != 250*time.Millisecond || r.Txn.Backoff.MaxDelay != 2*time.Second {
		t.Fatalf("unexpected backoff %+v", r.Txn.Backoff)
	}

	bad := writeFile(t, "bad.yml", "unknown_field: 1\n")
	if _, err := LoadClientConfig(bad); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestEnvOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvRPCEndpoint, "http://validator:8899")
	t.Setenv(EnvKeypair, "/keys/owner.json")
	cfg, err := LoadClientConfig(writeFile(t, "client.toml", ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCEndpoint != "http://validator:8899" || cfg.Keypair != "/keys/owner.json" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(*ClientConfig){
		"program_id":        func(c *ClientConfig) { c.ProgramID = "not-base58!" },
		"commitment":        func(c *ClientConfig) { c.Commitment = "max" },
		"schema":            func(c *ClientConfig) { c.Schema = "v3" },
		"derivation":        func(c *ClientConfig) { c.Derivation = "random" },
		"poll_interval":     func(c *ClientConfig) { c.PollInterval = "-1s" },
		"poll_max_interval": func(c *ClientConfig) { c.PollMaxInterval = "100ms" },
		"rpc_endpoint":      func(c *ClientConfig) { c.RPCEndpoint = " " },
		"rpc_rate_limit":    func(c *ClientConfig) { c.RPCRateLimit = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultClientConfig()
		mutate(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadClientConfig(writeFile(t, "client.ini", "")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestTemplatesLoadBack(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvRPCEndpoint, "")
	t.Setenv(EnvKeypair, "")
	dir := t.TempDir()
	for _, format := range []string{"toml", "yaml"} {
		path := filepath.Join(dir, "client."+format)
		if err := WriteTemplate(path, format, false); err != nil {
			t.Fatalf("write %s: %v", format, err)
		}
		if err := WriteTemplate(path, format, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", format)
		}
		if err := WriteTemplate(path, format, true); err != nil {
			t.Fatalf("%s: forced write: %v", format, err)
		}
		cfg, err := LoadClientConfig(path)
		if err != nil {
			t.Fatalf("%s: load template: %v", format, err)
		}
		want := DefaultClientConfig()
		if cfg.ProgramID != want.ProgramID || cfg.Schema != want.Schema || cfg.RPCBurst != want.RPCBurst {
			t.Fatalf("%s: template does not round trip: %+v", format, cfg)
		}
	}
	if _, err := Template("ini"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
