// Package config provides the file-based configuration schema for the
// gateway. Everything the admission pipeline needs is static at process
// start: protected routes, shield rules, bot allow list, rate limits, and
// the identity resolver. Nothing is reconfigurable per request.
package config

import (
	"github.com/spf13/viper"
)

// Config is the top-level configuration for the gateway.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Routes configures path classification for the auth gate and the
	// static-asset bypass.
	Routes RoutesConfig `yaml:"routes" mapstructure:"routes"`

	// Shield configures the abuse shield stage.
	Shield ShieldConfig `yaml:"shield" mapstructure:"shield"`

	// BotFilter configures the bot-filter stage.
	BotFilter BotFilterConfig `yaml:"bot_filter" mapstructure:"bot_filter"`

	// RateLimit configures the token-bucket stage.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Auth configures the auth gate and the identity resolver.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Audit configures where decision records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Scoring configures the external financial-analysis service.
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`

	// Upstream configures the application origin admitted requests are
	// proxied to. Optional: when empty only the gateway's own endpoints
	// are served.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// DevMode enables development features (verbose logging, seeded
	// identities).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
// TLS is expected to terminate at a reverse proxy.
type ServerConfig struct {
	// HTTPAddr is the address to listen on.
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// SessionCookie is the cookie name carrying the browser session token.
	// Defaults to "__session".
	SessionCookie string `yaml:"session_cookie" mapstructure:"session_cookie"`
}

// RoutesConfig configures path classification.
type RoutesConfig struct {
	// ProtectedPrefixes are the path namespaces that require a signed-in
	// principal. Defaults to the dashboard, account, and transaction
	// namespaces.
	ProtectedPrefixes []string `yaml:"protected_prefixes" mapstructure:"protected_prefixes"`

	// BypassPrefixes never enter the admission pipeline (framework
	// internals, static mounts).
	BypassPrefixes []string `yaml:"bypass_prefixes" mapstructure:"bypass_prefixes"`

	// BypassExtensions are static-asset file extensions that skip the
	// pipeline.
	BypassExtensions []string `yaml:"bypass_extensions" mapstructure:"bypass_extensions"`

	// EnforcePrefixes always run the pipeline, even for paths that look
	// like static assets. Defaults to the API namespaces.
	EnforcePrefixes []string `yaml:"enforce_prefixes" mapstructure:"enforce_prefixes"`

	// SignInURL is where unauthenticated requests to protected paths are
	// redirected. Defaults to "/sign-in".
	SignInURL string `yaml:"sign_in_url" mapstructure:"sign_in_url" validate:"omitempty,uri"`
}

// ShieldConfig configures the abuse shield stage.
type ShieldConfig struct {
	// Mode is "enforce" (matches block) or "observe" (matches are only
	// recorded). Defaults to "enforce".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,guard_mode"`

	// Rules are additional CEL rules evaluated after the built-in
	// signatures. Optional.
	Rules []ShieldRuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// ShieldRuleConfig defines one custom shield rule.
type ShieldRuleConfig struct {
	// ID is the unique identifier for this rule, used in audit records.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is a human-readable label.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Expression is a CEL expression over the request; true means match.
	// Available variables: method, path, query, user_agent, content_type,
	// content_length, header.
	Expression string `yaml:"expression" mapstructure:"expression" validate:"required"`
}

// BotFilterConfig configures the bot-filter stage.
type BotFilterConfig struct {
	// Mode is "enforce" or "observe". Defaults to "observe", matching the
	// cautious rollout posture for a browser-facing app.
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,guard_mode"`

	// Allow lists the client categories admitted by the filter.
	// Defaults to browser, search_engine, monitoring, http_library.
	Allow []string `yaml:"allow" mapstructure:"allow"`
}

// RateLimitConfig configures the token-bucket stage.
type RateLimitConfig struct {
	// Mode is "enforce" or "observe". Defaults to "enforce".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,guard_mode"`

	// Capacity is the bucket size (burst allowance). Defaults to 30.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"omitempty,min=1"`

	// RefillRate is tokens added per interval. Defaults to 30.
	RefillRate int `yaml:"refill_rate" mapstructure:"refill_rate" validate:"omitempty,min=1"`

	// Interval is the refill period (e.g. "60s"). Defaults to "60s".
	Interval string `yaml:"interval" mapstructure:"interval" validate:"omitempty"`

	// MaxKeys bounds the number of tracked identity keys. Defaults to 10000.
	MaxKeys int `yaml:"max_keys" mapstructure:"max_keys" validate:"omitempty,min=1"`

	// SweepInterval is how often idle buckets are evicted (e.g. "5m").
	// Defaults to "5m".
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty"`

	// MaxIdle is the idle age after which a bucket is evicted (e.g. "1h").
	// Defaults to "1h".
	MaxIdle string `yaml:"max_idle" mapstructure:"max_idle" validate:"omitempty"`
}

// AuthConfig configures the auth gate and identity resolution.
type AuthConfig struct {
	// FailMode decides what happens when identity resolution itself
	// fails: "open" forwards anonymously, "closed" rejects.
	// Defaults to "open".
	FailMode string `yaml:"fail_mode" mapstructure:"fail_mode" validate:"omitempty,fail_mode"`

	// Resolver selects the identity backend: "http" verifies sessions
	// against VerifyURL, "static" uses the seeded Sessions below.
	// Defaults to "static" when sessions are configured, else "http".
	Resolver string `yaml:"resolver" mapstructure:"resolver" validate:"omitempty,oneof=http static"`

	// VerifyURL is the session-verification endpoint for the http resolver.
	VerifyURL string `yaml:"verify_url" mapstructure:"verify_url" validate:"omitempty,url"`

	// VerifyTimeout bounds each verification call (e.g. "3s"). Defaults to "3s".
	VerifyTimeout string `yaml:"verify_timeout" mapstructure:"verify_timeout" validate:"omitempty"`

	// Sessions seed the static resolver. Each maps a token hash to a
	// principal.
	Sessions []SessionConfig `yaml:"sessions" mapstructure:"sessions" validate:"omitempty,dive"`
}

// SessionConfig defines one static session for the static resolver.
type SessionConfig struct {
	// TokenHash is the stored hash of the session token: SHA-256 hex
	// (optionally "sha256:"-prefixed) or Argon2id PHC format.
	// Generate with: ledgergate hash-token
	TokenHash string `yaml:"token_hash" mapstructure:"token_hash" validate:"required"`

	// PrincipalID is the unique identifier for this principal.
	PrincipalID string `yaml:"principal_id" mapstructure:"principal_id" validate:"required"`

	// Name is the display name.
	Name string `yaml:"name" mapstructure:"name"`

	// Roles assigned to the principal.
	Roles []string `yaml:"roles" mapstructure:"roles"`
}

// AuditConfig configures decision-record output.
type AuditConfig struct {
	// Output specifies where decision records are written.
	// Valid values: "stdout", "file://<absolute-dir>", or
	// "sqlite://<path>". Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the buffer size for the audit channel. Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records batched per write. Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often pending records are flushed (e.g. "1s").
	// Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long to block when the channel is full before
	// dropping (e.g. "100ms"; "0" drops immediately). Defaults to "100ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// WarningThreshold is the channel depth percentage (0-100) at which
	// warnings are logged. 0 disables. Defaults to 80.
	WarningThreshold int `yaml:"warning_threshold" mapstructure:"warning_threshold" validate:"omitempty,min=0,max=100"`

	// RetentionDays keeps file output this many days. Defaults to 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// MaxFileSizeMB rotates file output past this size. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`
}

// ScoringConfig configures the external analysis service.
type ScoringConfig struct {
	// BaseURL is the service root, without the /analyze suffix.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout bounds each analysis call (e.g. "15s"). Defaults to "15s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// UpstreamConfig configures the application origin behind the gateway.
type UpstreamConfig struct {
	// URL is the origin admitted requests are proxied to.
	URL string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults. Bind to localhost only; network exposure must be
	// an explicit choice.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionCookie == "" {
		c.Server.SessionCookie = "__session"
	}

	if c.Routes.SignInURL == "" {
		c.Routes.SignInURL = "/sign-in"
	}

	if c.Shield.Mode == "" {
		c.Shield.Mode = "enforce"
	}

	if c.BotFilter.Mode == "" {
		c.BotFilter.Mode = "observe"
	}

	if c.RateLimit.Mode == "" {
		c.RateLimit.Mode = "enforce"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 30
	}
	if c.RateLimit.Interval == "" {
		c.RateLimit.Interval = "60s"
	}
	if c.RateLimit.MaxKeys == 0 {
		c.RateLimit.MaxKeys = 10000
	}
	if c.RateLimit.SweepInterval == "" {
		c.RateLimit.SweepInterval = "5m"
	}
	if c.RateLimit.MaxIdle == "" {
		c.RateLimit.MaxIdle = "1h"
	}

	if c.Auth.FailMode == "" {
		c.Auth.FailMode = "open"
	}
	if c.Auth.Resolver == "" {
		if len(c.Auth.Sessions) > 0 {
			c.Auth.Resolver = "static"
		} else {
			c.Auth.Resolver = "http"
		}
	}
	if c.Auth.VerifyTimeout == "" {
		c.Auth.VerifyTimeout = "3s"
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
	if c.Audit.WarningThreshold == 0 {
		c.Audit.WarningThreshold = 80
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 7
	}
	if c.Audit.MaxFileSizeMB == 0 {
		c.Audit.MaxFileSizeMB = 100
	}

	if c.Scoring.Timeout == "" {
		c.Scoring.Timeout = "15s"
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied before validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	// Seed a dev session if none configured.
	// SHA-256 of "dev-session-token".
	if len(c.Auth.Sessions) == 0 && !viper.IsSet("auth.verify_url") {
		c.Auth.Resolver = "static"
		c.Auth.Sessions = []SessionConfig{
			{
				TokenHash:   "sha256:0f4a1f4f44b8973985a7cb99e3a94a22b928b2b31f086c2afd5055b0a227e4f0",
				PrincipalID: "dev-user",
				Name:        "Development User",
				Roles:       []string{"user"},
			},
		}
	}

	// Observe-only guards in dev so nothing blocks local iteration.
	if !viper.IsSet("shield.mode") {
		c.Shield.Mode = "observe"
	}
	if !viper.IsSet("rate_limit.mode") {
		c.RateLimit.Mode = "observe"
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
}
