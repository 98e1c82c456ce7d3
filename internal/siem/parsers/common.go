package parsers

import "regexp"

// fallbackTruncate is the raw-message cap for vendor-generic events.
const fallbackTruncate = 200

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// extract returns the first capture group of re in s, or "" on no match.
func extract(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// orUnknown substitutes the placeholder used in derived messages when a
// capture field is absent.
func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// addField records a capture field in a draft data map, skipping absent
// captures so the payload carries only what was actually extracted.
func addField(data map[string]any, key, val string) {
	if val != "" {
		data[key] = val
	}
}
