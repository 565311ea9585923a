package ingest

import "strings"

// FilterVerdict is the outcome of running allow/deny keyword rules against
// one item, with enough detail for the test-source operation's per-item
// accept/reject reasons (spec.md §4.C step 5).
type FilterVerdict struct {
	Accepted bool
	Reason   string
}

// ApplyFilters evaluates per-source then global deny/allow keyword lists
// against an item's title+text. Deny beats allow; an absent allow list
// means accept (spec.md §4.C step 5).
func ApplyFilters(text string, sourceAllow, sourceDeny, globalAllow, globalDeny []string) FilterVerdict {
	lower := strings.ToLower(text)

	if kw, ok := firstMatch(lower, sourceDeny); ok {
		return FilterVerdict{Accepted: false, Reason: "deny:source:" + kw}
	}
	if kw, ok := firstMatch(lower, globalDeny); ok {
		return FilterVerdict{Accepted: false, Reason: "deny:global:" + kw}
	}

	allow := sourceAllow
	if len(allow) == 0 {
		allow = globalAllow
	}
	if len(allow) == 0 {
		return FilterVerdict{Accepted: true, Reason: "allow:none_configured"}
	}
	if kw, ok := firstMatch(lower, allow); ok {
		return FilterVerdict{Accepted: true, Reason: "allow:" + kw}
	}
	return FilterVerdict{Accepted: false, Reason: "no_allow_match"}
}

func firstMatch(lowerText string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(lowerText, k) {
			return k, true
		}
	}
	return "", false
}
