package cachekey

import (
	"strings"
)

// Category is the semantic class of a cache key. The engine selects a caching
// strategy per category.
type Category string

const (
	CategoryUserData    Category = "user_data"
	CategoryAnalytics   Category = "analytics"
	CategoryStatic      Category = "static"
	CategoryComputed    Category = "computed"
	CategoryAPIResponse Category = "api_response"
)

var categoryHints = []struct {
	category Category
	hints    []string
}{
	{CategoryUserData, []string{"user", "profile", "settings", "agent", "lead"}},
	{CategoryAnalytics, []string{"analytics", "metric", "stat", "report", "dashboard"}},
	{CategoryStatic, []string{"static", "asset", "config", "template"}},
	{CategoryComputed, []string{"computed", "calculated", "score", "aggregate"}},
}

// Categorize maps an opaque key to a category using substring heuristics.
// Keys follow the <entity>:<id>[:<field>] convention, e.g. "lead:42:score".
// Never fails; anything unrecognized is a generic API response.
func Categorize(key string) Category {
	lowered := strings.ToLower(key)
	for _, entry := range categoryHints {
		for _, hint := range entry.hints {
			if strings.Contains(lowered, hint) {
				return entry.category
			}
		}
	}
	return CategoryAPIResponse
}

// ExtractPattern normalizes a key into its invalidation pattern by replacing
// every purely numeric segment with a wildcard: "user:123:profile" becomes
// "user:*:profile".
func ExtractPattern(key string) string {
	segments := strings.Split(key, ":")
	changed := false
	for i, segment := range segments {
		if isNumeric(segment) {
			segments[i] = "*"
			changed = true
		}
	}
	if !changed {
		return key
	}
	return strings.Join(segments, ":")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
