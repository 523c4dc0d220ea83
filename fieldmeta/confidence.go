package fieldmeta

import "strconv"

// OverallConfidence averages the Confidence of every leaf in tree that has one.
// Values that are not metadata leaves are skipped. It returns nil when no leaf
// carries a confidence.
func OverallConfidence(tree any) *float64 {
	var sum float64
	var count int
	walkLeaves(tree, func(leaf *FieldMetadata) {
		if leaf.Confidence != nil {
			sum += *leaf.Confidence
			count++
		}
	})
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

// Leaves returns every leaf of tree keyed by its dotted path. List indexes
// appear as path segments.
func Leaves(tree Node) map[string]*FieldMetadata {
	out := map[string]*FieldMetadata{}
	collectLeaves(tree, "", out)
	return out
}

func walkLeaves(v any, visit func(*FieldMetadata)) {
	switch t := v.(type) {
	case *FieldMetadata:
		if t != nil {
			visit(t)
		}
	case FieldMetadata:
		visit(&t)
	case Branch:
		for _, child := range t {
			walkLeaves(child, visit)
		}
	case map[string]Node:
		for _, child := range t {
			walkLeaves(child, visit)
		}
	case List:
		for _, child := range t {
			walkLeaves(child, visit)
		}
	case []Node:
		for _, child := range t {
			walkLeaves(child, visit)
		}
	case map[string]any:
		if isLeaf(t) {
			visit(parseLeaf(t, ""))
			return
		}
		for _, child := range t {
			walkLeaves(child, visit)
		}
	case []any:
		for _, child := range t {
			walkLeaves(child, visit)
		}
	}
}

func collectLeaves(node Node, prefix string, out map[string]*FieldMetadata) {
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}

	switch t := node.(type) {
	case *FieldMetadata:
		out[prefix] = t
	case Branch:
		for key, child := range t {
			collectLeaves(child, join(key), out)
		}
	case List:
		for i, child := range t {
			collectLeaves(child, join(strconv.Itoa(i)), out)
		}
	}
}
