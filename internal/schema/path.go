package schema

import "strings"

// Star is the marker segment standing for "any element" of a list node.
const Star = "*"

// Path addresses one node of the master schema, one key per segment.
// List nodes are traversed through the Star marker, so the third child of
// famille.descendants.enfants and the first share the same path.
type Path []string

// Key returns the canonical dotted form used as a map key.
func (p Path) Key() string {
	return strings.Join(p, ".")
}

// String renders the path for error messages.
func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	return strings.Join(p, ".")
}

// Child returns a copy of p extended by one segment.
func (p Path) Child(segment string) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, segment)
}

// Last returns the final segment, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// HasPrefix reports whether p starts with all segments of prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// ParsePath splits a canonical dotted key back into a Path.
func ParsePath(key string) Path {
	if key == "" {
		return Path{}
	}
	return Path(strings.Split(key, "."))
}
