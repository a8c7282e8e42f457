package schema

import (
	"fmt"
	"strings"
)

// ValidatePayload walks a generated target and checks every traversed
// path against the index: objects and lists must land on known prefixes,
// scalars on known leaves with matching types and enum membership. The
// first few problems are joined into one error so generator logs stay
// readable.
func (idx *Index) ValidatePayload(payload map[string]any) error {
	var errs []string
	idx.walkPayload(payload, Path{}, &errs)
	if len(errs) == 0 {
		return nil
	}
	preview := errs[0]
	for i := 1; i < len(errs) && i < 3; i++ {
		preview += "; " + errs[i]
	}
	if len(errs) > 3 {
		preview += "; ..."
	}
	return fmt.Errorf("target non conforme au schema maître: %s", preview)
}

func (idx *Index) walkPayload(node any, path Path, errs *[]string) {
	switch v := node.(type) {
	case map[string]any:
		if !idx.IsPrefix(path) {
			*errs = append(*errs, fmt.Sprintf("objet à un chemin non structurel: %s", path))
			return
		}
		for key, child := range v {
			if key == "" {
				*errs = append(*errs, fmt.Sprintf("clé vide sous %s", path))
				continue
			}
			childPath := path.Child(key)
			if !idx.Known(childPath) {
				*errs = append(*errs, fmt.Sprintf("clé inconnue: %s", childPath))
				continue
			}
			idx.walkPayload(child, childPath, errs)
		}
	case []any:
		star := path.Child(Star)
		if !idx.IsPrefix(star) {
			*errs = append(*errs, fmt.Sprintf("liste non autorisée à %s", path))
			return
		}
		for _, item := range v {
			idx.walkPayload(item, star, errs)
		}
	default:
		if !idx.IsLeaf(path) {
			*errs = append(*errs, fmt.Sprintf("valeur scalaire à un chemin non-feuille: %s", path))
			return
		}
		if err := idx.ValidateLeaf(path, v); err != nil {
			*errs = append(*errs, err.Error())
		}
	}
}

// ValidateSparse rejects any payload carrying a null, an empty string, an
// empty object, or an empty list. Branches with no meaningful content
// must be omitted entirely, not carried as husks.
func ValidateSparse(payload map[string]any) error {
	var errs []string
	walkSparse(payload, Path{}, &errs)
	if len(errs) == 0 {
		return nil
	}
	preview := errs[0]
	for i := 1; i < len(errs) && i < 3; i++ {
		preview += "; " + errs[i]
	}
	if len(errs) > 3 {
		preview += "; ..."
	}
	return fmt.Errorf("target non sparse: %s", preview)
}

func walkSparse(node any, path Path, errs *[]string) {
	switch v := node.(type) {
	case nil:
		*errs = append(*errs, fmt.Sprintf("null interdit à %s", path))
	case map[string]any:
		if len(v) == 0 {
			*errs = append(*errs, fmt.Sprintf("objet vide interdit à %s", path))
			return
		}
		for key, child := range v {
			if key == "" {
				*errs = append(*errs, fmt.Sprintf("clé vide à %s", path))
				continue
			}
			walkSparse(child, path.Child(key), errs)
		}
	case []any:
		if len(v) == 0 {
			*errs = append(*errs, fmt.Sprintf("liste vide interdite à %s", path))
			return
		}
		for i, item := range v {
			walkSparse(item, path.Child(fmt.Sprintf("[%d]", i)), errs)
		}
	case string:
		if strings.TrimSpace(v) == "" {
			*errs = append(*errs, fmt.Sprintf("string vide interdite à %s", path))
		}
	case bool, float64, int, int64:
	default:
		*errs = append(*errs, fmt.Sprintf("type non supporté à %s (%T)", path, node))
	}
}
