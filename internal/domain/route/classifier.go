// Package route classifies request paths for the admission pipeline.
package route

import (
	"path"
	"strings"
)

// DefaultProtectedPrefixes are the application namespaces that require a
// resolved principal: the dashboard, account settings, and transaction pages.
var DefaultProtectedPrefixes = []string{
	"/dashboard",
	"/account",
	"/transaction",
}

// DefaultBypassPrefixes are framework-internal paths the pipeline never sees.
var DefaultBypassPrefixes = []string{
	"/static/",
	"/assets/",
	"/favicon.ico",
}

// DefaultBypassExtensions are static-asset extensions that skip the pipeline.
var DefaultBypassExtensions = []string{
	".html", ".htm", ".css", ".js", ".map",
	".jpg", ".jpeg", ".webp", ".png", ".gif", ".svg", ".ico",
	".ttf", ".woff", ".woff2",
	".csv", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".webmanifest",
}

// DefaultEnforcePrefixes always go through the pipeline, even when the path
// would otherwise match a bypass rule (an asset-looking API path is still an
// API call).
var DefaultEnforcePrefixes = []string{
	"/api/",
	"/trpc/",
}

// Classifier decides whether a path is protected and whether it bypasses
// the admission pipeline entirely. Immutable after construction; evaluated
// read-only per request. An unmatched path is always public.
type Classifier struct {
	protected  []string
	bypassPre  []string
	bypassExt  map[string]struct{}
	enforcePre []string
}

// Config holds the path rule sets for a Classifier. Zero-value fields fall
// back to the package defaults.
type Config struct {
	ProtectedPrefixes []string
	BypassPrefixes    []string
	BypassExtensions  []string
	EnforcePrefixes   []string
}

// NewClassifier creates a Classifier from the given rule sets.
func NewClassifier(cfg Config) *Classifier {
	if cfg.ProtectedPrefixes == nil {
		cfg.ProtectedPrefixes = DefaultProtectedPrefixes
	}
	if cfg.BypassPrefixes == nil {
		cfg.BypassPrefixes = DefaultBypassPrefixes
	}
	if cfg.BypassExtensions == nil {
		cfg.BypassExtensions = DefaultBypassExtensions
	}
	if cfg.EnforcePrefixes == nil {
		cfg.EnforcePrefixes = DefaultEnforcePrefixes
	}

	ext := make(map[string]struct{}, len(cfg.BypassExtensions))
	for _, e := range cfg.BypassExtensions {
		ext[strings.ToLower(e)] = struct{}{}
	}

	return &Classifier{
		protected:  cfg.ProtectedPrefixes,
		bypassPre:  cfg.BypassPrefixes,
		bypassExt:  ext,
		enforcePre: cfg.EnforcePrefixes,
	}
}

// Protected returns true if the path requires a resolved principal.
// Pure function, no failure mode.
func (c *Classifier) Protected(p string) bool {
	for _, prefix := range c.protected {
		if matchPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Bypass returns true if the path skips the admission pipeline entirely:
// static assets by extension and framework-internal prefixes. Paths under
// an enforce prefix never bypass.
func (c *Classifier) Bypass(p string) bool {
	for _, prefix := range c.enforcePre {
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}
	for _, prefix := range c.bypassPre {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if e := strings.ToLower(path.Ext(p)); e != "" {
		if _, ok := c.bypassExt[e]; ok {
			return true
		}
	}
	return false
}

// matchPrefix matches "/dashboard" against "/dashboard", "/dashboard/..."
// but not "/dashboards": the prefix must end at a path boundary.
func matchPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	if len(p) == len(prefix) {
		return true
	}
	return p[len(prefix)] == '/'
}
