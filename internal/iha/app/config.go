package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/pelletier/go-toml/v2"
)

// Config is the runtime configuration. LoadConfig reads it from an optional
// TOML file and then applies IHA_* environment overrides.
type Config struct {
	Issuer               string   `toml:"issuer"`                // issuer claim and discovery base URL (default: http://localhost:8080)
	DatabaseFile         string   `toml:"database_file"`         // path to the SQLite database file (default: iha.db)
	MasterKeyPath        string   `toml:"master_key_path"`       // file holding the key that seals stored JWKS documents
	PepperFile           string   `toml:"pepper_file"`           // file holding the password hashing pepper (default: pepper)
	RedisAddr            string   `toml:"redis_addr"`            // optional: keep authorization codes in Redis instead of SQLite
	RedisPassword        string   `toml:"redis_password"`        // optional
	RedisDB              int      `toml:"redis_db"`              // optional
	Env                  string   `toml:"env"`                   // dev, staging, prod (default: dev)
	LogLevel             string   `toml:"log_level"`             // debug, info, warn, error (default: info)
	LogFormat            string   `toml:"log_format"`            // json, text (default: json)
	Port                 int      `toml:"port"`                  // HTTP port (default: 8080)
	ShutdownGracePeriod  Duration `toml:"shutdown_grace_period"` // graceful shutdown timeout (default: 10s)
	HousekeepingInterval Duration `toml:"housekeeping_interval"` // expired code cleanup interval (default: 15m)
	ApprovalTTL          Duration `toml:"approval_ttl"`          // how long a user's consent is remembered (default: 720h)

	// Global is the default signing configuration. When the store has none
	// and no JWKS file is given a key is generated on startup.
	Global JwtSeed `toml:"jwt"`

	Clients   []ClientSeed   `toml:"clients"`
	Users     []UserSeed     `toml:"users"`
	Upstreams []UpstreamSeed `toml:"upstreams"`
}

// JwtSeed declares the signing material for one client, or the global
// default when ClientID is empty.
type JwtSeed struct {
	ClientID     string   `toml:"client_id"`
	KeyID        string   `toml:"key_id"`
	Algorithm    string   `toml:"algorithm"`    // default RS256
	JWKSFile     string   `toml:"jwks_file"`    // private JWKS document, generated when empty
	Verification string   `toml:"verification"` // jwks or https
	JWKSURL      string   `toml:"jwks_url"`
	TTL          Duration `toml:"ttl"`
}

// ClientSeed registers a client on first start. Secret is plain text and is
// hashed before it is stored; leave it empty for a public client.
type ClientSeed struct {
	AppID           string   `toml:"app_id"`
	ClientID        string   `toml:"client_id"`
	Name            string   `toml:"name"`
	Secret          string   `toml:"secret"`
	Scopes          []string `toml:"scopes"`
	RedirectURIs    []string `toml:"redirect_uris"`
	GrantTypes      []string `toml:"grant_types"`
	ResponseTypes   []string `toml:"response_types"`
	RequireProofKey bool     `toml:"require_pkce"`
	AutoApprove     bool     `toml:"auto_approve"` // skip the user consent step
	CodeTTL         Duration `toml:"code_ttl"`
	AccessTokenTTL  Duration `toml:"access_token_ttl"`
	IDTokenTTL      Duration `toml:"id_token_ttl"`

	// JWT gives the client its own signing key.
	JWT *JwtSeed `toml:"jwt"`
}

// UserSeed creates an account on first start.
type UserSeed struct {
	ID          string         `toml:"id"`
	Username    string         `toml:"username"`
	Password    string         `toml:"password"`
	Authorities []string       `toml:"authorities"`
	Claims      map[string]any `toml:"claims"`
	Disabled    bool           `toml:"disabled"`
	Locked      bool           `toml:"locked"`

	Identities []IdentitySeed `toml:"identities"`
}

// IdentitySeed links an upstream (issuer, subject) pair to the account.
type IdentitySeed struct {
	Issuer  string `toml:"issuer"`
	Subject string `toml:"subject"`
}

// UpstreamSeed trusts ID tokens from an upstream OpenID provider for the
// oauth2 authentication type.
type UpstreamSeed struct {
	Issuer   string `toml:"issuer"`
	ClientID string `toml:"client_id"`
}

// Duration decodes TOML strings such as "90s" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig reads path when it is not empty, then applies environment
// overrides and defaults. A missing file is an error only when path was
// given explicitly.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s does not exist", path)
			}
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays IHA_* variables onto values from the file, then fills
// whatever is still unset.
func (cfg *Config) applyEnv() {
	cfg.Issuer = getEnvOrDefault("IHA_ISSUER", orString(cfg.Issuer, "http://localhost:8080"))
	cfg.DatabaseFile = getEnvOrDefault("IHA_DATABASE_FILE", orString(cfg.DatabaseFile, "iha.db"))
	cfg.MasterKeyPath = getEnvOrDefault("IHA_MASTER_KEY_PATH", cfg.MasterKeyPath)
	cfg.PepperFile = getEnvOrDefault("IHA_PEPPER_FILE", orString(cfg.PepperFile, "pepper"))
	cfg.RedisAddr = getEnvOrDefault("IHA_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("IHA_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvIntOrDefault("IHA_REDIS_DB", cfg.RedisDB)
	cfg.Env = getEnvOrDefault("IHA_ENV", orString(cfg.Env, "dev"))
	cfg.LogLevel = getEnvOrDefault("IHA_LOG_LEVEL", orString(cfg.LogLevel, "info"))
	cfg.LogFormat = getEnvOrDefault("IHA_LOG_FORMAT", orString(cfg.LogFormat, "json"))
	cfg.Port = getEnvIntOrDefault("IHA_PORT", orInt(cfg.Port, 8080))
	cfg.ShutdownGracePeriod = Duration(getEnvDurationOrDefault("IHA_SHUTDOWN_GRACE_PERIOD",
		orDuration(cfg.ShutdownGracePeriod.Std(), 10*time.Second)))
	cfg.HousekeepingInterval = Duration(getEnvDurationOrDefault("IHA_HOUSEKEEPING_INTERVAL",
		orDuration(cfg.HousekeepingInterval.Std(), 15*time.Minute)))
	cfg.ApprovalTTL = Duration(getEnvDurationOrDefault("IHA_APPROVAL_TTL",
		orDuration(cfg.ApprovalTTL.Std(), domain.DefaultApprovalTTL)))

	cfg.Global.ClientID = ""
	cfg.Global.KeyID = getEnvOrDefault("IHA_JWT_KEY_ID", orString(cfg.Global.KeyID, "iha-global"))
	cfg.Global.Algorithm = getEnvOrDefault("IHA_JWT_ALGORITHM", cfg.Global.Algorithm)
	cfg.Global.JWKSFile = getEnvOrDefault("IHA_JWT_JWKS_FILE", cfg.Global.JWKSFile)
	cfg.Global.TTL = Duration(getEnvDurationOrDefault("IHA_JWT_TTL", cfg.Global.TTL.Std()))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
