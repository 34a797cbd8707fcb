package gate

import "github.com/dmitrijs2005/bookclub/internal/flagx"

// RouteTable is the closed set of paths that do not require identity.
// It is immutable after construction.
type RouteTable struct {
	public map[string]struct{}
}

func NewRouteTable(paths []string) RouteTable {
	t := RouteTable{public: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if p != "" {
			t.public[p] = struct{}{}
		}
	}
	return t
}

// ParseRouteList builds a RouteTable from a comma-separated allowlist.
func ParseRouteList(raw string) RouteTable {
	return NewRouteTable(flagx.SplitList(raw))
}

// IsPublic reports whether path is in the allowlist. Matching is exact.
func (t RouteTable) IsPublic(path string) bool {
	_, ok := t.public[path]
	return ok
}

func (t RouteTable) Len() int {
	return len(t.public)
}
