// Package audit contains domain types for admission audit logging.
package audit

import "time"

// Decision constants for audit records.
const (
	// DecisionAllow indicates the request was forwarded.
	DecisionAllow = "allow"
	// DecisionDeny indicates the request was rejected.
	DecisionDeny = "deny"
	// DecisionRedirect indicates the request was redirected to sign-in.
	DecisionRedirect = "redirect"
)

// Stage constants name the pipeline stage that produced a record.
const (
	StageShield    = "shield"
	StageBotFilter = "bot_filter"
	StageRateLimit = "rate_limit"
	StageAuthGate  = "auth_gate"
	StagePipeline  = "pipeline"
)

// Record represents a single auditable admission event.
type Record struct {
	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
	// RequestID is for correlation across systems.
	RequestID string `json:"request_id"`
	// Stage is the pipeline stage that produced this record.
	Stage string `json:"stage"`
	// Decision is "allow", "deny", or "redirect".
	Decision string `json:"decision"`
	// Reason explains why the decision was made.
	Reason string `json:"reason,omitempty"`
	// Observed is true when the producing guard ran in observe mode,
	// meaning the denial was recorded but did not block the request.
	Observed bool `json:"observed,omitempty"`

	// Method is the HTTP method of the request.
	Method string `json:"method"`
	// Path is the request path.
	Path string `json:"path"`
	// SourceIP is the client's real IP.
	SourceIP string `json:"source_ip,omitempty"`
	// UserAgent is the client's User-Agent header.
	UserAgent string `json:"user_agent,omitempty"`

	// IdentityKey is the rate-limit partition key for the request.
	IdentityKey string `json:"identity_key,omitempty"`
	// PrincipalID is the resolved principal, when one was present.
	PrincipalID string `json:"principal_id,omitempty"`
	// BotCategory is the bot classification, for bot-filter records.
	BotCategory string `json:"bot_category,omitempty"`
	// RuleID names the shield rule that matched, for shield records.
	RuleID string `json:"rule_id,omitempty"`
	// RetryAfterMillis is the advisory retry delay for rate-limit denials.
	RetryAfterMillis int64 `json:"retry_after_ms,omitempty"`
}
