// Package config loads vaultledger settings.
//
// Sources, lowest precedence first: schema defaults, the YAML file, the
// process environment (after loading .env), then command-line flags applied
// by the caller. The result is validated against the embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaSource string

// DefaultPath is the config file read when none is given and it exists.
const DefaultPath = "vaultledger.yaml"

// Environment variables that override the file.
const (
	EnvDB          = "VAULTLEDGER_DB"
	EnvLogLevel    = "VAULTLEDGER_LOG_LEVEL"
	EnvRedisAddr   = "VAULTLEDGER_REDIS_ADDR"
	EnvLockBackend = "VAULTLEDGER_LOCK_BACKEND"
	EnvDecimals    = "VAULTLEDGER_TOKEN_DECIMALS"
)

// Config is the validated configuration.
type Config struct {
	Database      string          `json:"database"`
	LogLevel      string          `json:"log_level"`
	TokenDecimals int32           `json:"token_decimals"`
	Lock          LockConfig      `json:"lock"`
	Authz         AuthzConfig     `json:"authz"`
	Audit         AuditConfig     `json:"audit"`
	Reconcile     ReconcileConfig `json:"reconcile"`
}

// LockConfig selects the per-owner lock implementation.
type LockConfig struct {
	Backend    string   `json:"backend"`
	RedisAddr  string   `json:"redis_addr"`
	Expiry     Duration `json:"expiry"`
	Tries      int      `json:"tries"`
	RetryDelay Duration `json:"retry_delay"`
}

// AuthzConfig tunes the authorization gate.
type AuthzConfig struct {
	CacheTTL Duration `json:"cache_ttl"`
}

// AuditConfig configures the rotating audit file. An empty File keeps
// audit entries in the database only.
type AuditConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// ReconcileConfig tunes the reconciliation poller and driver.
type ReconcileConfig struct {
	Schedule      string   `json:"schedule"`
	TicketTTL     Duration `json:"ticket_ttl"`
	BatchSize     int      `json:"batch_size"`
	RPCRate       float64  `json:"rpc_rate"`
	RPCBurst      int      `json:"rpc_burst"`
	RetryAttempts int      `json:"retry_attempts"`
	RetryBase     Duration `json:"retry_base"`
}

// Duration is a time.Duration written as a Go duration string ("15m").
type Duration string

// Std returns d as a time.Duration. Values are schema-checked on load, so a
// parse failure yields zero.
func (d Duration) Std() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

// Default returns the schema defaults.
func Default() (Config, error) {
	return decode(nil, "")
}

// Load reads path (DefaultPath if empty and present), then applies
// environment overrides. envFile is loaded into the environment first when
// it exists; variables already set win.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		data, path = nil, ""
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(data, path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks c against the schema. Call it again after applying flag
// overrides.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func decode(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return Config{}, err
	}

	v := def
	if len(data) > 0 {
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", filename, err)
		}
		file := ctx.BuildFile(f)
		if err := file.Err(); err != nil {
			return Config{}, fmt.Errorf("build %s: %w", filename, err)
		}
		v = def.Unify(file)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile config schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Config")), nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDB); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Lock.RedisAddr = v
	}
	if v := os.Getenv(EnvLockBackend); v != "" {
		c.Lock.Backend = v
	}
	if v := os.Getenv(EnvDecimals); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDecimals, err)
		}
		c.TokenDecimals = int32(n)
	}
	return nil
}
