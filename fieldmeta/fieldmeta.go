// Package fieldmeta normalizes the per-field confidence and citation metadata
// returned alongside extraction results into a typed tree.
package fieldmeta

import (
	"encoding/json"
	"fmt"
)

// Node is an element of a parsed metadata tree: *FieldMetadata, Branch or List.
type Node interface {
	isNode()
}

// Citation points at the page and text a value was extracted from.
type Citation struct {
	Page         *int   `json:"page,omitempty"`
	MatchingText string `json:"matching_text,omitempty"`
}

// FieldMetadata is the leaf of the tree.
type FieldMetadata struct {
	Reasoning            string     `json:"reasoning,omitempty"`
	Confidence           *float64   `json:"confidence,omitempty"`
	ExtractionConfidence *float64   `json:"extraction_confidence,omitempty"`
	ParsingConfidence    *float64   `json:"parsing_confidence,omitempty"`
	Citation             []Citation `json:"citation"`
}

// MarshalJSON always writes the citation list, so a leaf without scores
// still decodes back as a leaf.
func (m FieldMetadata) MarshalJSON() ([]byte, error) {
	type leaf FieldMetadata
	out := leaf(m)
	if out.Citation == nil {
		out.Citation = []Citation{}
	}
	return json.Marshal(out)
}

// Branch maps field names to nested metadata.
type Branch map[string]Node

// List holds metadata for array fields. Elements that could not be parsed are nil.
type List []Node

func (*FieldMetadata) isNode() {}
func (Branch) isNode()         {}
func (List) isNode()           {}

const (
	keyReasoning            = "reasoning"
	keyConfidence           = "confidence"
	keyExtractionConfidence = "extraction_confidence"
	keyParsingConfidence    = "parsing_confidence"
	keyCitation             = "citation"
	keyPage                 = "page"
	keyMatchingText         = "matching_text"
	keyError                = "error"
)

// Parse normalizes raw field metadata. The input may be decoded JSON or an
// already parsed tree; parsing is idempotent. A nil input yields an empty Branch.
func Parse(raw any) (Branch, error) {
	switch v := raw.(type) {
	case nil:
		return Branch{}, nil
	case Branch:
		return parseBranch(v, "", true), nil
	case map[string]Node:
		return parseBranch(Branch(v), "", true), nil
	case map[string]any:
		return parseMap(v, "", true), nil
	default:
		return nil, fmt.Errorf("field metadata must be an object, got %T", raw)
	}
}

// ParseNode normalizes any metadata value. Scalars and nil yield nil.
func ParseNode(raw any) Node {
	return parseValue(raw, "")
}

// FieldErrors returns the top-level error text the service attaches to field
// metadata when some fields could not be extracted.
func FieldErrors(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m[keyError].(string)
	return msg, ok && msg != ""
}

func parseValue(raw any, inherited string) Node {
	switch v := raw.(type) {
	case *FieldMetadata:
		if v == nil {
			return nil
		}
		return cloneLeaf(*v, inherited)
	case FieldMetadata:
		return cloneLeaf(v, inherited)
	case Branch:
		return parseBranch(v, inherited, false)
	case map[string]Node:
		return parseBranch(Branch(v), inherited, false)
	case List:
		return parseNodes(v, inherited)
	case []Node:
		return parseNodes(v, inherited)
	case map[string]any:
		if isLeaf(v) {
			return parseLeaf(v, inherited)
		}
		return parseMap(v, inherited, false)
	case []any:
		out := make(List, len(v))
		for i, item := range v {
			out[i] = parseValue(item, inherited)
		}
		return out
	default:
		return nil
	}
}

func parseMap(m map[string]any, inherited string, top bool) Branch {
	reasoning := inherited
	if s, ok := m[keyReasoning].(string); ok {
		reasoning = s
	}

	out := Branch{}
	for key, value := range m {
		if top && key == keyError {
			continue
		}
		if _, ok := value.(string); ok && key == keyReasoning {
			continue
		}
		if node := parseValue(value, reasoning); node != nil {
			out[key] = node
		}
	}
	return out
}

func parseBranch(b Branch, inherited string, top bool) Branch {
	out := make(Branch, len(b))
	for key, value := range b {
		if top && key == keyError {
			continue
		}
		if node := parseValue(value, inherited); node != nil {
			out[key] = node
		}
	}
	return out
}

func parseNodes(nodes []Node, inherited string) List {
	out := make(List, len(nodes))
	for i, node := range nodes {
		if node != nil {
			out[i] = parseValue(node, inherited)
		}
	}
	return out
}

// isLeaf reports whether m carries any leaf marker with a non-object value.
// Reasoning alone never makes a leaf.
func isLeaf(m map[string]any) bool {
	for _, key := range []string{keyConfidence, keyExtractionConfidence, keyParsingConfidence, keyPage} {
		if _, ok := toFloat(m[key]); ok {
			return true
		}
	}
	switch m[keyCitation].(type) {
	case []any, []Citation, []map[string]any:
		return true
	}
	_, ok := m[keyMatchingText].(string)
	return ok
}

func parseLeaf(m map[string]any, inherited string) *FieldMetadata {
	leaf := &FieldMetadata{Reasoning: inherited}
	if s, ok := m[keyReasoning].(string); ok {
		leaf.Reasoning = s
	}
	leaf.Confidence = floatPtr(m[keyConfidence])
	leaf.ExtractionConfidence = floatPtr(m[keyExtractionConfidence])
	leaf.ParsingConfidence = floatPtr(m[keyParsingConfidence])

	switch citations := m[keyCitation].(type) {
	case []any:
		for _, item := range citations {
			if c, ok := item.(map[string]any); ok {
				leaf.Citation = append(leaf.Citation, parseCitation(c))
			}
		}
	case []map[string]any:
		for _, c := range citations {
			leaf.Citation = append(leaf.Citation, parseCitation(c))
		}
	case []Citation:
		leaf.Citation = append(leaf.Citation, citations...)
	}

	// Older responses put a single citation inline on the leaf.
	_, hasPage := toFloat(m[keyPage])
	_, hasText := m[keyMatchingText].(string)
	if hasPage || hasText {
		leaf.Citation = append(leaf.Citation, parseCitation(m))
	}

	if len(leaf.Citation) == 0 {
		leaf.Citation = nil
	}
	return leaf
}

func parseCitation(m map[string]any) Citation {
	var c Citation
	if f, ok := toFloat(m[keyPage]); ok {
		page := int(f)
		c.Page = &page
	}
	if s, ok := m[keyMatchingText].(string); ok {
		c.MatchingText = s
	}
	return c
}

func cloneLeaf(leaf FieldMetadata, inherited string) *FieldMetadata {
	if leaf.Reasoning == "" {
		leaf.Reasoning = inherited
	}
	if len(leaf.Citation) == 0 {
		leaf.Citation = nil
	} else {
		leaf.Citation = append([]Citation(nil), leaf.Citation...)
	}
	return &leaf
}

func floatPtr(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// UnmarshalJSON decodes and normalizes a metadata object.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*b = nil
		return nil
	}
	*b = parseMap(raw, "", true)
	return nil
}

// UnmarshalJSON decodes and normalizes a metadata array.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	parsed, _ := parseValue(raw, "").(List)
	*l = parsed
	return nil
}
