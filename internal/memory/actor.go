package memory

import "strings"

// SanitizeActorID derives an event-store actor identifier from an arbitrary
// user identifier. The event store only accepts [A-Za-z0-9_-], starting with
// an alphanumeric, so emails like "john.doe@example.com" become
// "john_doe_example_com". Empty results fall back to "user".
func SanitizeActorID(userID string) string {
	var b strings.Builder
	b.Grow(len(userID))
	for _, r := range userID {
		if isActorAlnum(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	for len(out) > 0 && !isActorAlnum(rune(out[0])) {
		out = out[1:]
	}

	out = collapseUnderscores(out)
	if out == "" {
		return "user"
	}
	return out
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isActorAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
