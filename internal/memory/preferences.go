package memory

import (
	"context"
	"strings"
)

const (
	// preferenceSessionLimit bounds how many recent sessions feed inference.
	preferenceSessionLimit = 5
	// preferenceMessageLimit bounds how many recent user turns are inspected.
	preferenceMessageLimit = 20
	// followUpLimit caps the suggestions returned per query.
	followUpLimit = 3
)

// UserPreferences derives a preference snapshot from the user's recent
// conversation history. It is a pure function of stored history at call
// time; nothing is cached or written back. CommunicationStyle and
// ResponseLength are fixed defaults.
func (m *Manager) UserPreferences(ctx context.Context, userID string) (Preferences, error) {
	prefs := Preferences{
		CommunicationStyle: "professional",
		PreferredTopics:    []string{},
		CommonIssues:       []string{},
		ResponseLength:     "medium",
	}

	sessions, firstErr := m.UserSessions(ctx, userID, preferenceSessionLimit)

	var all []Turn
	for _, sess := range sessions {
		turns, err := m.SessionMessages(ctx, userID, sess.SessionID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		all = append(all, turns...)
	}

	var userTurns []Turn
	for _, t := range all {
		if t.Role == RoleUser {
			userTurns = append(userTurns, t)
		}
	}
	if len(userTurns) > preferenceMessageLimit {
		userTurns = userTurns[len(userTurns)-preferenceMessageLimit:]
	}

	var issues, topics []string
	for _, t := range userTurns {
		content := strings.ToLower(t.Content)
		// Each message is filed under the first matching category only: a
		// message mentioning both "warranty" and "mars" counts for warranty
		// alone. Callers depend on this filing order.
		switch {
		case strings.Contains(content, "warranty"):
			issues = append(issues, "warranty")
		case containsAny(content, "profile", "account"):
			issues = append(issues, "account")
		case containsAny(content, "mars", "weather"):
			topics = append(topics, "space_data")
		}
	}

	prefs.CommonIssues = dedupe(issues)
	prefs.PreferredTopics = dedupe(topics)
	return prefs, firstErr
}

// FollowUpQuestions proposes up to three canned follow-ups: suggestions
// drawn from the user's historical issue categories first, then suggestions
// keyed off the current query text. The two sources are not deduplicated
// against each other.
func (m *Manager) FollowUpQuestions(ctx context.Context, userID, currentQuery string) ([]string, error) {
	prefs, err := m.UserPreferences(ctx, userID)

	var followUps []string
	if contains(prefs.CommonIssues, "warranty") {
		followUps = append(followUps, "Would you like me to check the warranty status of any other products?")
	}
	if contains(prefs.CommonIssues, "account") {
		followUps = append(followUps, "Do you need help updating your account information?")
	}

	query := strings.ToLower(currentQuery)
	switch {
	case strings.Contains(query, "warranty"):
		followUps = append(followUps,
			"Would you like me to explain the warranty coverage details?",
			"Do you need help with a warranty claim process?")
	case containsAny(query, "profile", "customer"):
		followUps = append(followUps,
			"Would you like to update any of your profile information?",
			"Do you need help with your communication preferences?")
	case strings.Contains(query, "mars"):
		followUps = append(followUps,
			"Would you like to know about Mars atmospheric conditions?",
			"Are you interested in historical Mars weather data?")
	}

	if len(followUps) > followUpLimit {
		followUps = followUps[:followUpLimit]
	}
	return followUps, err
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
