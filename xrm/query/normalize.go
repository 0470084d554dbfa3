package query

import "strconv"

// Normalize fills in the defaults every front end shares: filters without
// an operator combine with And, links without a join type join Inner, and
// links without an alias take the linked entity's name (numbered when the
// name is already taken). Front ends call this before Validate; the
// engine calls it again so hand-built IRs behave the same.
func (ir *IR) Normalize() {
	normalizeFilter(ir.Filter)

	seen := make(map[string]int)
	normalizeLinks(ir.Links, seen)
}

func normalizeFilter(f *Filter) {
	if f == nil {
		return
	}
	if f.Operator == "" {
		f.Operator = And
	}
	for _, child := range f.Filters {
		normalizeFilter(child)
	}
}

func normalizeLinks(links []Link, seen map[string]int) {
	for i := range links {
		l := &links[i]
		if l.Type == "" {
			l.Type = Inner
		}
		if l.Alias == "" {
			l.Alias = l.Name
		}
		if n, taken := seen[l.Alias]; taken {
			seen[l.Alias] = n + 1
			l.Alias += strconv.Itoa(n)
		}
		seen[l.Alias] = 1
		normalizeFilter(l.Filter)
		normalizeLinks(l.Links, seen)
	}
}
