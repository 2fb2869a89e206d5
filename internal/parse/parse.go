// Package parse turns the free-form text that CLI tools print into typed
// records. All functions are pure and total: malformed input degrades to
// an empty or negative result, never an error.
package parse

import (
	"strings"
	"time"

	"cli2api/internal/core"
)

// Positive and negative authentication markers, matched case-insensitively
// against whole lines. Negative markers win over positive ones on the same
// line, so "Not logged in" never reads as authenticated.
var (
	negativeAuthMarkers = []string{
		"not logged in",
		"not authenticated",
		"unauthenticated",
		"logged out",
		"no credentials",
	}
	positiveAuthMarkers = []string{
		"logged in",
		"authenticated",
		"login successful",
	}
	accountKeys = []string{"account", "email", "user", "logged in as"}
	expiryKeys  = []string{"expires", "expiry", "expiration", "valid until"}
)

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAuthStatus extracts an AuthStatus from the text a tool's
// auth-status subcommand printed. Absence of a positive marker means
// not authenticated.
func ParseAuthStatus(text string) core.AuthStatus {
	status := core.AuthStatus{}

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		if containsAny(lower, negativeAuthMarkers) {
			continue
		}
		if containsAny(lower, positiveAuthMarkers) {
			status.Authenticated = true
		}

		if key, value, ok := splitKeyValue(line); ok {
			switch {
			case matchesKey(key, accountKeys):
				if status.Account == "" && value != "" {
					status.Account = value
				}
			case matchesKey(key, expiryKeys):
				if t, ok := parseExpiry(value); ok {
					status.Expiry = t
				}
			}
		}
	}

	return status
}

// ParseModelList extracts model records from tabular listing output.
// Header and separator lines are skipped; the first whitespace-delimited
// token of each remaining line is the model id.
func ParseModelList(text string) []core.ModelRecord {
	var records []core.ModelRecord
	seen := make(map[string]bool)

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" || isHeaderLine(line) {
			continue
		}

		fields := strings.Fields(line)
		id := fields[0]
		if seen[id] {
			continue
		}
		seen[id] = true

		record := core.ModelRecord{ID: id}
		if len(fields) > 1 {
			record.DisplayName = strings.Join(fields[1:], " ")
		}
		lower := strings.ToLower(line)
		record.Vision = strings.Contains(lower, "vision")
		record.ToolUse = strings.Contains(lower, "tool")

		records = append(records, record)
	}

	return records
}

// header token words that label a listing rather than naming a model
var headerTokens = map[string]bool{
	"model":     true,
	"models":    true,
	"id":        true,
	"name":      true,
	"available": true,
}

func isHeaderLine(line string) bool {
	if strings.HasSuffix(line, ":") {
		return true
	}
	if strings.Trim(line, "-= ") == "" {
		return true
	}
	first := strings.ToLower(strings.Fields(line)[0])
	return headerTokens[first]
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// splitKeyValue splits "Key: value" style lines. Keys never contain a
// colon themselves, so the first colon wins.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func matchesKey(key string, candidates []string) bool {
	lower := strings.ToLower(key)
	for _, c := range candidates {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

func parseExpiry(value string) (time.Time, bool) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
