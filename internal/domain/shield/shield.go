package shield

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Built-in signature IDs, reported in audit records as the matching rule.
const (
	SignatureSQLInjection    = "builtin:sql_injection"
	SignaturePathTraversal   = "builtin:path_traversal"
	SignatureNullByte        = "builtin:null_byte"
	SignatureScriptInjection = "builtin:script_injection"
	SignatureTemplateInject  = "builtin:template_injection"
)

// signature pairs a compiled pattern with its rule ID and reason.
type signature struct {
	id      string
	reason  string
	pattern *regexp.Regexp
}

// builtinSignatures are the fixed known-malicious patterns the shield
// checks against the request path, query, and header values.
var builtinSignatures = []signature{
	{
		id:      SignatureSQLInjection,
		reason:  "sql injection signature",
		pattern: regexp.MustCompile(`(?i)(union[\s/*+]+select|\bor\s+1\s*=\s*1\b|information_schema|;\s*drop\s+table|'\s*or\s*'|\bsleep\s*\(|load_file\s*\()`),
	},
	{
		id:      SignaturePathTraversal,
		reason:  "path traversal signature",
		pattern: regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`),
	},
	{
		id:      SignatureNullByte,
		reason:  "null byte in request",
		pattern: regexp.MustCompile(`(\x00|%00)`),
	},
	{
		id:      SignatureScriptInjection,
		reason:  "script injection signature",
		pattern: regexp.MustCompile(`(?i)(<script\b|javascript:|\bonerror\s*=|\bonload\s*=|data:text/html)`),
	},
	{
		id:      SignatureTemplateInject,
		reason:  "template injection signature",
		pattern: regexp.MustCompile(`(\{\{.*\}\}|\$\{.*\})`),
	},
}

// compiledRule pairs a custom rule with its compiled program.
type compiledRule struct {
	rule    Rule
	program Program
}

// Shield evaluates requests against the built-in signature set and any
// custom rules. Immutable after construction; safe for concurrent use.
type Shield struct {
	custom []compiledRule
}

// New creates a Shield, compiling each custom rule with the given compiler.
// Compilation failures are startup errors: a rule that cannot compile must
// not silently become a no-op filter.
func New(compiler Compiler, rules []Rule) (*Shield, error) {
	s := &Shield{}
	for _, r := range rules {
		prg, err := compiler.Compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("shield rule %q: %w", r.ID, err)
		}
		s.custom = append(s.custom, compiledRule{rule: r, program: prg})
	}
	return s, nil
}

// Inspect checks a request against built-in signatures and custom rules.
// Returns the first Match found, or nil when the request is clean. A rule
// program error is returned to the caller; the guard decides what an
// evaluation failure means (it fails open).
func (s *Shield) Inspect(ctx context.Context, rc RequestContext) (*Match, error) {
	// Built-in signatures scan the path (raw and decoded), the query
	// string, and header values attackers commonly smuggle payloads in.
	surfaces := inspectSurfaces(rc)
	for _, sig := range builtinSignatures {
		for _, surface := range surfaces {
			if sig.pattern.MatchString(surface) {
				return &Match{RuleID: sig.id, Reason: sig.reason}, nil
			}
		}
	}

	for _, cr := range s.custom {
		matched, err := cr.program.Eval(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("rule %q evaluation: %w", cr.rule.ID, err)
		}
		if matched {
			return &Match{RuleID: cr.rule.ID, Reason: "custom rule " + cr.rule.Name}, nil
		}
	}

	return nil, nil
}

// inspectSurfaces collects the request strings the signatures scan.
func inspectSurfaces(rc RequestContext) []string {
	surfaces := []string{rc.Path, rc.RawQuery}

	// Decoded forms catch single-encoded payloads; decode errors mean the
	// encoding itself is garbage, so the raw form is all there is to scan.
	if decoded, err := url.QueryUnescape(rc.RawQuery); err == nil && decoded != rc.RawQuery {
		surfaces = append(surfaces, decoded)
	}
	if decoded, err := url.PathUnescape(rc.Path); err == nil && decoded != rc.Path {
		surfaces = append(surfaces, decoded)
	}

	for name, value := range rc.Header {
		// Cookie values are opaque tokens; scanning them yields false
		// positives on base64 padding.
		if strings.EqualFold(name, "Cookie") || strings.EqualFold(name, "Authorization") {
			continue
		}
		surfaces = append(surfaces, value)
	}

	return surfaces
}
