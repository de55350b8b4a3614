// Package bot classifies requesting clients from User-Agent signals and
// checks the resulting category against a static allow-list.
package bot

// Category is the closed set of client classifications.
// Unclassifiable clients default to CategoryUnclassified, the most
// restrictive category.
type Category string

const (
	// CategoryBrowser is an ordinary human-operated web browser.
	CategoryBrowser Category = "browser"
	// CategorySearchEngine is a known search-engine crawler (Googlebot, Bingbot).
	CategorySearchEngine Category = "search_engine"
	// CategoryMonitoring is an uptime or synthetic-monitoring probe.
	CategoryMonitoring Category = "monitoring"
	// CategoryHTTPLibrary is a generic HTTP client library (Go, curl, requests).
	// Allowed by default: internal job runners identify this way.
	CategoryHTTPLibrary Category = "http_library"
	// CategoryGenericBot is a self-declared crawler outside the known sets.
	CategoryGenericBot Category = "generic_bot"
	// CategoryUnclassified is the default for clients that match nothing.
	CategoryUnclassified Category = "unclassified"
)

// IsValid returns true if the category is a known valid category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBrowser, CategorySearchEngine, CategoryMonitoring,
		CategoryHTTPLibrary, CategoryGenericBot, CategoryUnclassified:
		return true
	default:
		return false
	}
}

// DefaultAllowed is the default allow-list: browsers, search-engine
// crawlers, monitoring probes, and HTTP libraries pass; self-declared
// generic bots and unclassifiable clients do not.
var DefaultAllowed = []Category{
	CategoryBrowser,
	CategorySearchEngine,
	CategoryMonitoring,
	CategoryHTTPLibrary,
}

// AllowList is a set of categories permitted through the bot filter.
type AllowList map[Category]struct{}

// NewAllowList builds an AllowList from a slice of categories.
func NewAllowList(categories []Category) AllowList {
	al := make(AllowList, len(categories))
	for _, c := range categories {
		al[c] = struct{}{}
	}
	return al
}

// Allowed returns true if the category is on the allow-list.
func (a AllowList) Allowed(c Category) bool {
	_, ok := a[c]
	return ok
}
