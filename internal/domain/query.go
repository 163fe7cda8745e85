package domain

import (
	"fmt"
	"strings"
)

// Query describes the filter applied to the grid. Its match count is the grid's total count.
type Query struct {
	Search          string
	Status          Status
	IncludeArchived bool
}

// Normalize trims and lowercases query fields.
func (q Query) Normalize() (Query, error) {
	q.Search = strings.TrimSpace(q.Search)
	if q.Status != "" {
		status, err := ParseStatus(string(q.Status))
		if err != nil {
			return Query{}, err
		}
		q.Status = status
	}
	return q, nil
}

// FoldText is the case folding used for title search, in memory and in stored columns.
func FoldText(s string) string {
	return strings.ToLower(s)
}

// Matches reports whether a record passes the query filter. Storage adapters must select
// exactly the records Matches accepts.
func (q Query) Matches(r Record) bool {
	if !q.IncludeArchived && r.Archived() {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if search := strings.TrimSpace(q.Search); search != "" && !strings.Contains(FoldText(r.Title), FoldText(search)) {
		return false
	}
	return true
}

// String renders a compact description used in action log entries.
func (q Query) String() string {
	parts := make([]string, 0, 3)
	if q.Search != "" {
		parts = append(parts, fmt.Sprintf("q=%q", q.Search))
	}
	if q.Status != "" {
		parts = append(parts, "status="+string(q.Status))
	}
	if q.IncludeArchived {
		parts = append(parts, "archived=true")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
