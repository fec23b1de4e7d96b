package reconcile

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// rowSource implements fuzzy.Source over session names.
type rowSource []Row

func (s rowSource) String(i int) string { return strings.ToLower(s[i].Name) }
func (s rowSource) Len() int            { return len(s) }

// Filter keeps the rows whose session name fuzzy-matches query. Matching is
// case-insensitive and the result keeps the order of rows, not match score,
// so the list does not reshuffle while typing. A blank query returns rows
// unchanged.
func Filter(rows []Row, query string) []Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}

	matches := fuzzy.FindFrom(query, rowSource(rows))
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Index
	}
	sort.Ints(idx)

	out := make([]Row, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
