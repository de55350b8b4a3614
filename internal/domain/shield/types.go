// Package shield implements the abuse shield: a signature filter that
// inspects request surfaces for known-malicious patterns before any other
// pipeline stage runs.
package shield

import "context"

// Rule is a custom shield rule configured by the operator. The expression
// is compiled once at startup by the expression adapter.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string
	// Name is a human-readable name for this rule.
	Name string
	// Expression is a CEL expression over the request environment that
	// evaluates to true when the request should be denied.
	Expression string
}

// Match describes a shield violation.
type Match struct {
	// RuleID identifies the built-in signature or custom rule that matched.
	RuleID string
	// Reason is a short, client-safe description of the violation.
	Reason string
}

// RequestContext is the subset of request data shield rules evaluate over.
type RequestContext struct {
	// Method is the HTTP method.
	Method string
	// Path is the URL path.
	Path string
	// RawQuery is the unparsed query string.
	RawQuery string
	// UserAgent is the User-Agent header value.
	UserAgent string
	// ContentType is the Content-Type header value.
	ContentType string
	// ContentLength is the declared body size (-1 if unknown).
	ContentLength int64
	// Header maps canonical header names to their first value.
	Header map[string]string
}

// Program is a compiled custom rule, ready for per-request evaluation.
type Program interface {
	// Eval returns true when the rule matches (request should be denied).
	Eval(ctx context.Context, rc RequestContext) (bool, error)
}

// Compiler compiles rule expressions into programs.
// Implemented by the CEL adapter.
type Compiler interface {
	Compile(expression string) (Program, error)
}
