// Package filter selects fixture events for a feed request.
package filter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// EventFilter contains the criteria applied to the fixture events.
type EventFilter struct {
	// Queries match when any one of them appears in a string field of the
	// event. No queries matches everything.
	Queries []string

	Category    string
	ThreatLevel string

	Limit int
}

// ParseEventFilter reads the optional query parameters of a feed request.
// Queries come from the request body and are added by the caller.
func ParseEventFilter(r *http.Request) EventFilter {
	q := r.URL.Query()
	return EventFilter{
		Category:    q.Get("category"),
		ThreatLevel: q.Get("threat_level"),
		Limit:       parseIntOrDefault(q.Get("limit"), 0),
	}
}

// Apply returns the events that match, preserving their order.
func (f EventFilter) Apply(events []map[string]any) []map[string]any {
	fold := cases.Fold()
	queries := make([]string, 0, len(f.Queries))
	for _, q := range f.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, fold.String(q))
		}
	}

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		if !f.matchesFields(e) || !matchesAny(e, queries) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (f EventFilter) matchesFields(e map[string]any) bool {
	if f.Category != "" && !strings.EqualFold(str(e["category"]), f.Category) {
		return false
	}
	if f.ThreatLevel != "" && !strings.EqualFold(str(e["threatLevel"]), f.ThreatLevel) {
		return false
	}
	return true
}

// matchesAny reports whether one of the folded queries appears in a
// top-level string field of e.
func matchesAny(e map[string]any, queries []string) bool {
	if len(queries) == 0 {
		return true
	}
	fold := cases.Fold()
	for _, v := range e {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = fold.String(s)
		for _, q := range queries {
			if strings.Contains(s, q) {
				return true
			}
		}
	}
	return false
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
