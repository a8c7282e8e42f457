// Package schema loads the master extraction schema and answers path
// queries for the target generator and validators. The schema file is the
// project's descriptive exemplar format, not JSON Schema: leaves are
// objects carrying only metadata keys, lists carry a single object
// template, and everything else is a structural prefix.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
)

// ScalarType is the declared kind of a leaf value.
type ScalarType string

const (
	TypeString  ScalarType = "string"
	TypeNumber  ScalarType = "number"
	TypeBoolean ScalarType = "boolean"
)

// leafMetaKeys are the only keys a leaf node may carry. An object with at
// least one of these and nothing else is a leaf; any other object is a
// structural prefix.
var leafMetaKeys = map[string]bool{
	"description":       true,
	"type":              true,
	"valeurs_possibles": true,
	"pickOne":           true,
}

// LeafSpec describes one terminal path of the master schema.
type LeafSpec struct {
	Path        Path
	Type        ScalarType
	Enum        []string
	Description string
}

// IsEnum reports whether the leaf constrains its value to a closed set.
func (s LeafSpec) IsEnum() bool {
	return len(s.Enum) > 0
}

// Index is the immutable lookup structure over the master schema. All
// query methods are safe for concurrent use after construction.
type Index struct {
	prefixes map[string]struct{}
	leaves   map[string]LeafSpec
	ordered  []Path

	// leavesBy caches, per prefix key, the ordered leaf paths below it.
	// The memo is the only mutable state after Build.
	mu       sync.Mutex
	leavesBy map[string][]Path
}

// Load reads and indexes the master schema file.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lecture du schema maître: %w", err)
	}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("schema maître invalide (%s): %w", path, err)
	}
	return Build(root)
}

// Build indexes an already-parsed schema document. Unknown node kinds are
// load errors naming the offending path, never silently skipped.
func Build(root map[string]any) (*Index, error) {
	idx := &Index{
		prefixes: map[string]struct{}{"": {}},
		leaves:   make(map[string]LeafSpec),
		leavesBy: make(map[string][]Path),
	}
	if len(root) == 0 {
		return nil, fmt.Errorf("schema maître vide")
	}
	if err := idx.walk(root, Path{}); err != nil {
		return nil, err
	}
	sort.Slice(idx.ordered, func(i, j int) bool {
		return idx.ordered[i].Key() < idx.ordered[j].Key()
	})
	return idx, nil
}

func (idx *Index) walk(node any, path Path) error {
	obj, ok := node.(map[string]any)
	if !ok {
		if list, ok := node.([]any); ok {
			if len(list) != 1 {
				return fmt.Errorf("liste à %s: attendu exactement 1 modèle d'élément, trouvé %d", path, len(list))
			}
			template, ok := list[0].(map[string]any)
			if !ok {
				return fmt.Errorf("liste à %s: le modèle d'élément doit être un objet", path)
			}
			// The list path itself is a prefix too: payload traversal
			// reaches it before descending through the star marker.
			idx.prefixes[path.Key()] = struct{}{}
			star := path.Child(Star)
			idx.prefixes[star.Key()] = struct{}{}
			return idx.walk(template, star)
		}
		return fmt.Errorf("nœud de type inattendu à %s (%T)", path, node)
	}

	if isLeafNode(obj) {
		spec, err := leafSpecFrom(obj, path)
		if err != nil {
			return err
		}
		idx.leaves[path.Key()] = spec
		idx.ordered = append(idx.ordered, path)
		return nil
	}

	idx.prefixes[path.Key()] = struct{}{}
	for key, child := range obj {
		if key == "" {
			return fmt.Errorf("clé vide sous %s", path)
		}
		if err := idx.walk(child, path.Child(key)); err != nil {
			return err
		}
	}
	return nil
}

// isLeafNode mirrors the exemplar convention: an object whose keys are a
// non-empty subset of the metadata keys, with a non-object "type".
func isLeafNode(obj map[string]any) bool {
	if len(obj) == 0 {
		return false
	}
	found := false
	for key := range obj {
		if !leafMetaKeys[key] {
			return false
		}
		found = true
	}
	if _, structural := obj["type"].(map[string]any); structural {
		return false
	}
	return found
}

func leafSpecFrom(obj map[string]any, path Path) (LeafSpec, error) {
	spec := LeafSpec{Path: path, Type: TypeString}
	if desc, ok := obj["description"].(string); ok {
		spec.Description = desc
	}
	if declared, ok := obj["type"].(string); ok {
		switch ScalarType(declared) {
		case TypeString, TypeNumber, TypeBoolean:
			spec.Type = ScalarType(declared)
		default:
			return LeafSpec{}, fmt.Errorf("type déclaré inconnu %q à %s", declared, path)
		}
	}
	raw, ok := obj["valeurs_possibles"].([]any)
	if !ok {
		raw, _ = obj["pickOne"].([]any)
	}
	for _, item := range raw {
		value, ok := item.(string)
		if !ok {
			return LeafSpec{}, fmt.Errorf("valeur d'enum non textuelle à %s", path)
		}
		value = strings.TrimSpace(value)
		if value != "" {
			spec.Enum = append(spec.Enum, value)
		}
	}
	// An enum leaf always holds one of its string codes.
	if spec.IsEnum() {
		spec.Type = TypeString
	}
	return spec, nil
}

// IsLeaf reports whether the path names a terminal of the schema.
func (idx *Index) IsLeaf(path Path) bool {
	_, ok := idx.leaves[path.Key()]
	return ok
}

// LeafSpec returns the spec of a leaf path.
func (idx *Index) LeafSpec(path Path) (LeafSpec, bool) {
	spec, ok := idx.leaves[path.Key()]
	return spec, ok
}

// IsPrefix reports whether the path names a structural (non-leaf) node.
func (idx *Index) IsPrefix(path Path) bool {
	_, ok := idx.prefixes[path.Key()]
	return ok
}

// Known reports whether the path exists at all, leaf or prefix.
func (idx *Index) Known(path Path) bool {
	return idx.IsLeaf(path) || idx.IsPrefix(path)
}

// EnumValues returns the enum set of a leaf, nil when the leaf is free-form
// or unknown.
func (idx *Index) EnumValues(path Path) []string {
	spec, ok := idx.leaves[path.Key()]
	if !ok {
		return nil
	}
	return spec.Enum
}

// LeavesUnder returns the specs of every leaf below the prefix, in
// canonical key order. Results are memoized; the returned slice must not
// be mutated.
func (idx *Index) LeavesUnder(prefix Path) []LeafSpec {
	key := prefix.Key()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if cached, ok := idx.leavesBy[key]; ok {
		return idx.specsFor(cached)
	}
	var under []Path
	for _, leaf := range idx.ordered {
		if leaf.HasPrefix(prefix) {
			under = append(under, leaf)
		}
	}
	idx.leavesBy[key] = under
	return idx.specsFor(under)
}

func (idx *Index) specsFor(paths []Path) []LeafSpec {
	specs := make([]LeafSpec, 0, len(paths))
	for _, p := range paths {
		specs = append(specs, idx.leaves[p.Key()])
	}
	return specs
}

// LeafCount returns the number of indexed leaves.
func (idx *Index) LeafCount() int {
	return len(idx.leaves)
}

// ValidateLeaf checks a scalar value against the leaf spec at path. Dates
// travel as strings and are checked by the generator; here a date is just
// a non-empty string.
func (idx *Index) ValidateLeaf(path Path, value any) error {
	spec, ok := idx.leaves[path.Key()]
	if !ok {
		return fmt.Errorf("chemin inconnu: %s", path)
	}
	switch spec.Type {
	case TypeString:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("type attendu string à %s (reçu %T)", path, value)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("string vide à %s", path)
		}
		if spec.IsEnum() && !contains(spec.Enum, text) {
			return fmt.Errorf("valeur hors enum à %s (reçu %q)", path, text)
		}
	case TypeNumber:
		switch v := value.(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("nombre invalide à %s", path)
			}
		case int, int64:
		default:
			return fmt.Errorf("type attendu number à %s (reçu %T)", path, value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("type attendu boolean à %s (reçu %T)", path, value)
		}
	}
	return nil
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
