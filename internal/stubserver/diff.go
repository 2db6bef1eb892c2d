package stubserver

import (
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// Diff kinds.
const (
	KindAdded    = "added"
	KindRemoved  = "removed"
	KindModified = "modified"
)

// DiffDocuments walks two decoded JSON values and reports leaf changes.
// Object keys are visited in sorted order; list elements are compared by
// index. Paths join keys with "." and indexes as "[i]".
func DiffDocuments(base, compare any) []remote.DiffItem {
	items := []remote.DiffItem{}
	walkDiff(base, compare, nil, &items)
	return items
}

type pathPart struct {
	key   string
	index int
	isIdx bool
}

func walkDiff(base, compare any, path []pathPart, out *[]remote.DiffItem) {
	baseMap, baseIsMap := asMap(base)
	compareMap, compareIsMap := asMap(compare)
	if baseIsMap && compareIsMap {
		keys := make([]string, 0, len(baseMap)+len(compareMap))
		for k := range baseMap {
			keys = append(keys, k)
		}
		for k := range compareMap {
			if _, ok := baseMap[k]; !ok {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			a, inBase := baseMap[k]
			b, inCompare := compareMap[k]
			next := appendPath(path, pathPart{key: k})
			switch {
			case !inBase:
				*out = append(*out, remote.DiffItem{Path: formatPath(next), Kind: KindAdded, Compare: b})
			case !inCompare:
				*out = append(*out, remote.DiffItem{Path: formatPath(next), Kind: KindRemoved, Base: a})
			default:
				walkDiff(a, b, next, out)
			}
		}
		return
	}

	baseList, baseIsList := base.([]any)
	compareList, compareIsList := compare.([]any)
	if baseIsList && compareIsList {
		n := max(len(baseList), len(compareList))
		for i := range n {
			next := appendPath(path, pathPart{index: i, isIdx: true})
			switch {
			case i >= len(baseList):
				*out = append(*out, remote.DiffItem{Path: formatPath(next), Kind: KindAdded, Compare: compareList[i]})
			case i >= len(compareList):
				*out = append(*out, remote.DiffItem{Path: formatPath(next), Kind: KindRemoved, Base: baseList[i]})
			default:
				walkDiff(baseList[i], compareList[i], next, out)
			}
		}
		return
	}

	if !reflect.DeepEqual(base, compare) {
		*out = append(*out, remote.DiffItem{Path: formatPath(path), Kind: KindModified, Base: base, Compare: compare})
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case document.Document:
		return m, true
	}
	return nil, false
}

func appendPath(path []pathPart, part pathPart) []pathPart {
	next := make([]pathPart, len(path), len(path)+1)
	copy(next, path)
	return append(next, part)
}

func formatPath(path []pathPart) string {
	parts := make([]string, len(path))
	for i, p := range path {
		if p.isIdx {
			parts[i] = "[" + strconv.Itoa(p.index) + "]"
		} else {
			parts[i] = p.key
		}
	}
	return strings.Join(parts, ".")
}
