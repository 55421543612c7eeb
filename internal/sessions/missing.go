package sessions

import "strings"

var placeholders = map[string]struct{}{
	"nan":  {},
	"n/a":  {},
	"none": {},
	"null": {},
}

// IsMissing reports whether v carries no usable data: empty, whitespace only,
// or one of the placeholder strings spreadsheet exports leave behind.
func IsMissing(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return true
	}
	_, ok := placeholders[strings.ToLower(s)]
	return ok
}

// orEmpty returns v, or "" when v is missing.
func orEmpty(v string) string {
	if IsMissing(v) {
		return ""
	}
	return v
}
