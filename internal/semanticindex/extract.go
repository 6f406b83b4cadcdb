// Package semanticindex implements C9: turning a Summarizer response into
// {summary, topics[], keywords[], impact}, persisting it through the Store,
// and serving the weighted search contract over the result.
package semanticindex

import (
	"strings"

	"github.com/josephgoksu/obbywatch/internal/store"
)

// Extracted is the tolerant-parse result of a Summarizer response.
type Extracted struct {
	Summary  string
	Topics   []string
	Keywords []string
	Impact   store.Impact
}

// Extract parses resp using spec.md §4.9's two accepted shapes: either a
// bullet list (joined with "; ", impact inferred from bullet count) or
// **Summary**:/**Topics**:/**Keywords**:/**Impact**: markdown prefixes.
func Extract(resp string) Extracted {
	lines := splitNonEmptyLines(resp)

	bullets := bulletLines(lines)
	if len(bullets) > 0 {
		summary := strings.Join(bullets, "; ")
		return Extracted{
			Summary: summary,
			Impact:  impactForBulletCount(len(bullets)),
		}
	}

	return extractPrefixed(lines)
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func bulletLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.HasPrefix(l, "- ") {
			out = append(out, strings.TrimPrefix(l, "- "))
		}
	}
	return out
}

func impactForBulletCount(n int) store.Impact {
	switch {
	case n > 3:
		return store.ImpactSignificant
	case n > 1:
		return store.ImpactModerate
	default:
		return store.ImpactBrief
	}
}

func extractPrefixed(lines []string) Extracted {
	var e Extracted
	for _, l := range lines {
		switch {
		case hasFieldPrefix(l, "Summary"):
			e.Summary = fieldValue(l, "Summary")
		case hasFieldPrefix(l, "Topics"):
			e.Topics = splitCSV(fieldValue(l, "Topics"))
		case hasFieldPrefix(l, "Keywords"):
			e.Keywords = splitCSV(fieldValue(l, "Keywords"))
		case hasFieldPrefix(l, "Impact"):
			e.Impact = normalizeImpact(fieldValue(l, "Impact"))
		}
	}
	if e.Impact == "" {
		e.Impact = store.ImpactBrief
	}
	return e
}

func hasFieldPrefix(line, field string) bool {
	prefix := "**" + field + "**:"
	return strings.HasPrefix(line, prefix)
}

func fieldValue(line, field string) string {
	prefix := "**" + field + "**:"
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeImpact folds a free-form impact string into the closed
// {brief, moderate, significant} set, defaulting to brief.
func normalizeImpact(s string) store.Impact {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "significant", "high", "major":
		return store.ImpactSignificant
	case "moderate", "medium":
		return store.ImpactModerate
	default:
		return store.ImpactBrief
	}
}
