// Package config loads the client configuration from TOML or YAML and
// resolves it into typed values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/votectl/internal/address"
	"github.com/danmuck/votectl/internal/protocol"
	"github.com/danmuck/votectl/internal/transport/solanarpc"
	"github.com/danmuck/votectl/internal/txn"
)

const (
	DefaultProgramID   = "AYJ7F7tPhvUu6gUucew7AJqhasTEx8tH3UF9GAuyfQQz"
	DefaultRPCEndpoint = "http://127.0.0.1:8899"

	EnvRPCEndpoint = "VOTECTL_RPC_ENDPOINT"
	EnvKeypair     = "VOTECTL_KEYPAIR"
	EnvAPIToken    = "VOTECTL_API_TOKEN"
)

var ErrUnknownFormat = errors.New("config: unknown format")

type ClientConfig struct {
	RPCEndpoint     string   `toml:"rpc_endpoint" yaml:"rpc_endpoint"`
	ProgramID       string   `toml:"program_id" yaml:"program_id"`
	Commitment      string   `toml:"commitment" yaml:"commitment"`
	Schema          string   `toml:"schema" yaml:"schema"`
	Derivation      string   `toml:"derivation" yaml:"derivation"`
	Keypair         string   `toml:"keypair" yaml:"keypair"`
	PollInterval    string   `toml:"poll_interval" yaml:"poll_interval"`
	PollMaxInterval string   `toml:"poll_max_interval" yaml:"poll_max_interval"`
	RPCRateLimit    float64  `toml:"rpc_rate_limit" yaml:"rpc_rate_limit"`
	RPCBurst        int      `toml:"rpc_burst" yaml:"rpc_burst"`
	HTTPAddr        string   `toml:"http_addr" yaml:"http_addr"`
	CorsOrigins     []string `toml:"cors_origins" yaml:"cors_origins"`
	APIToken        string   `toml:"api_token" yaml:"api_token"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RPCEndpoint:     DefaultRPCEndpoint,
		ProgramID:       DefaultProgramID,
		Commitment:      string(rpc.CommitmentConfirmed),
		Schema:          protocol.SchemaWindowed.String(),
		Derivation:      address.ModeScoped.String(),
		Keypair:         "~/.config/solana/id.json",
		PollInterval:    "500ms",
		PollMaxInterval: "4s",
		RPCRateLimit:    10,
		RPCBurst:        5,
		HTTPAddr:        ":9400",
		CorsOrigins:     []string{"http://localhost:3000"},
	}
}

// Resolved is a validated configuration in typed form.
type Resolved struct {
	RPCEndpoint  string
	ProgramID    solana.PublicKey
	Commitment   rpc.CommitmentType
	Schema       protocol.SchemaVersion
	Mode         address.Mode
	KeypairPath  string
	Txn          txn.Config
	RPCRateLimit float64
	RPCBurst     int
	HTTPAddr     string
	CorsOrigins  []string
	APIToken     string
}

// LoadClientConfig reads path, picking the decoder from its extension, and
// applies environment overrides on top.
func LoadClientConfig(path string) (ClientConfig, error) {
	var (
		cfg ClientConfig
		err error
	)
	switch format := formatOf(path); format {
	case "toml":
		cfg, err = loadTOML(path)
	case "yaml":
		cfg, err = loadYAML(path)
	default:
		return ClientConfig{}, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.ApplyEnv()
	if err := Validate(cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the endpoint, keypair path and API token from the
// environment.
func (c *ClientConfig) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRPCEndpoint)); v != "" {
		c.RPCEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKeypair)); v != "" {
		c.Keypair = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIToken)); v != "" {
		c.APIToken = v
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

type fileConfig struct {
	RPCEndpoint     string   `toml:"rpc_endpoint"`
	ProgramID       string   `toml:"program_id"`
	Commitment      string   `toml:"commitment"`
	Schema          string   `toml:"schema"`
	Derivation      string   `toml:"derivation"`
	Keypair         string   `toml:"keypair"`
	PollInterval    string   `toml:"poll_interval"`
	PollMaxInterval string   `toml:"poll_max_interval"`
	RPCRateLimit    float64  `toml:"rpc_rate_limit"`
	RPCBurst        int      `toml:"rpc_burst"`
	HTTPAddr        string   `toml:"http_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	APIToken        string   `toml:"api_token"`
}

func loadTOML(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): unknown key %q", path, undecoded[0].String())
	}

	setString := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("rpc_endpoint", &cfg.RPCEndpoint, raw.RPCEndpoint)
	setString("program_id", &cfg.ProgramID, raw.ProgramID)
	setString("commitment", &cfg.Commitment, raw.Commitment)
	setString("schema", &cfg.Schema, raw.Schema)
	setString("derivation", &cfg.Derivation, raw.Derivation)
	setString("keypair", &cfg.Keypair, raw.Keypair)
	setString("poll_interval", &cfg.PollInterval, raw.PollInterval)
	setString("poll_max_interval", &cfg.PollMaxInterval, raw.PollMaxInterval)
	setString("http_addr", &cfg.HTTPAddr, raw.HTTPAddr)
	setString("api_token", &cfg.APIToken, raw.APIToken)

	if meta.IsDefined("rpc_rate_limit") {
		cfg.RPCRateLimit = raw.RPCRateLimit
	}
	if meta.IsDefined("rpc_burst") {
		cfg.RPCBurst = raw.RPCBurst
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	return cfg, nil
}

func loadYAML(path string) (ClientConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()

	cfg := DefaultClientConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg.CorsOrigins = normalizeOrigins(cfg.CorsOrigins)
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func Validate(cfg ClientConfig) error {
	_, err := cfg.Resolve()
	return err
}

// Resolve parses every field into its typed form.
func (c ClientConfig) Resolve() (Resolved, error) {
	if strings.TrimSpace(c.RPCEndpoint) == "" {
		return Resolved{}, fmt.Errorf("rpc_endpoint is required")
	}
	programID, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.ProgramID))
	if err != nil {
		return Resolved{}, fmt.Errorf("program_id: %w", err)
	}
	commitment, err := solanarpc.ParseCommitment(c.Commitment)
	if err != nil {
		return Resolved{}, fmt.Errorf("commitment: %w", err)
	}
	schema, err := protocol.ParseSchemaVersion(c.Schema)
	if err != nil {
		return Resolved{}, fmt.Errorf("schema: %w", err)
	}
	mode, err := address.ParseMode(c.Derivation)
	if err != nil {
		return Resolved{}, fmt.Errorf("derivation: %w", err)
	}
	poll, err := parsePositiveDuration("poll_interval", c.PollInterval)
	if err != nil {
		return Resolved{}, err
	}
	pollMax, err := parsePositiveDuration("poll_max_interval", c.PollMaxInterval)
	if err != nil {
		return Resolved{}, err
	}
	if pollMax < poll {
		return Resolved{}, fmt.Errorf("poll_max_interval %s is below poll_interval %s", pollMax, poll)
	}
	if c.RPCRateLimit < 0 {
		return Resolved{}, fmt.Errorf("rpc_rate_limit must not be negative")
	}
	if c.RPCBurst < 0 {
		return Resolved{}, fmt.Errorf("rpc_burst must not be negative")
	}

	txCfg := txn.DefaultConfig()
	txCfg.Backoff.InitialDelay = poll
	txCfg.Backoff.MaxDelay = pollMax

	return Resolved{
		RPCEndpoint:  strings.TrimSpace(c.RPCEndpoint),
		ProgramID:    programID,
		Commitment:   commitment,
		Schema:       schema,
		Mode:         mode,
		KeypairPath:  expandHome(strings.TrimSpace(c.Keypair)),
		Txn:          txCfg,
		RPCRateLimit: c.RPCRateLimit,
		RPCBurst:     c.RPCBurst,
		HTTPAddr:     strings.TrimSpace(c.HTTPAddr),
		CorsOrigins:  c.CorsOrigins,
		APIToken:     strings.TrimSpace(c.APIToken),
	}, nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
