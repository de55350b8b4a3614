package bot

import "strings"

// searchEnginePatterns identify crawlers operated by major search engines.
var searchEnginePatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "applebot", "sogou",
}

// monitoringPatterns identify uptime and synthetic-monitoring probes.
var monitoringPatterns = []string{
	"pingdom", "uptimerobot", "statuscake", "site24x7", "newrelicpinger",
	"datadog", "checkly", "betteruptime",
}

// httpLibraryPatterns identify generic HTTP client libraries. These are
// allowed by default because internal job runners and webhooks use them.
var httpLibraryPatterns = []string{
	"go-http-client", "curl/", "wget/", "python-requests", "python-urllib",
	"okhttp", "axios/", "node-fetch", "libwww-perl", "java/",
}

// genericBotMarkers identify clients that self-declare as automated but
// match none of the known crawler or probe sets.
var genericBotMarkers = []string{
	"bot", "crawler", "spider", "scrap", "headless", "phantomjs",
}

// browserMarkers identify ordinary browser engines.
var browserMarkers = []string{
	"mozilla/", "chrome/", "safari/", "firefox/", "edg/", "opera/",
}

// Classify determines the client category from a User-Agent string.
// Classification is case-insensitive and uses substring matching over
// fixed pattern tables.
//
// Priority order (most to least specific):
//   - search_engine: known crawler tokens
//   - monitoring: known probe tokens
//   - http_library: client library tokens
//   - generic_bot: self-declared automation markers
//   - browser: browser engine markers
//   - unclassified: everything else, including an empty User-Agent
//
// Ordering matters: "Googlebot" carries "Mozilla/5.0" and "bot", so the
// crawler tables must win over both the generic markers and the browser
// markers.
func Classify(userAgent string) Category {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return CategoryUnclassified
	}

	for _, pattern := range searchEnginePatterns {
		if strings.Contains(ua, pattern) {
			return CategorySearchEngine
		}
	}

	for _, pattern := range monitoringPatterns {
		if strings.Contains(ua, pattern) {
			return CategoryMonitoring
		}
	}

	for _, pattern := range httpLibraryPatterns {
		if strings.Contains(ua, pattern) {
			return CategoryHTTPLibrary
		}
	}

	for _, marker := range genericBotMarkers {
		if strings.Contains(ua, marker) {
			return CategoryGenericBot
		}
	}

	for _, marker := range browserMarkers {
		if strings.Contains(ua, marker) {
			return CategoryBrowser
		}
	}

	return CategoryUnclassified
}
