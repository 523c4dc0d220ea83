package agentdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	client "github.com/hsn0918/llamacloud-client"
)

// ValidationError reports a payload that does not decode into the record type.
type ValidationError struct {
	Data map[string]any
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agent data does not match schema: %v", e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{client.ErrValidation, e.Err}
}

// Schema converts between raw JSON objects and T. Decoding honours json tags.
type Schema[T any] struct {
	jsonSchema *jsonschema.Schema
}

type schemaConfig struct {
	document map[string]any
}

// SchemaOption configures NewSchema.
type SchemaOption func(*schemaConfig)

// WithJSONSchema additionally checks every payload against a JSON Schema document.
func WithJSONSchema(document map[string]any) SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.document = document
	}
}

// NewSchema builds a Schema for T.
func NewSchema[T any](opts ...SchemaOption) (*Schema[T], error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Schema[T]{}
	if cfg.document != nil {
		raw, err := json.Marshal(cfg.document)
		if err != nil {
			return nil, fmt.Errorf("encode json schema: %w", err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("agent_data.json", bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("load json schema: %w", err)
		}
		compiled, err := compiler.Compile("agent_data.json")
		if err != nil {
			return nil, fmt.Errorf("compile json schema: %w", err)
		}
		s.jsonSchema = compiled
	}
	return s, nil
}

// Validate decodes raw into T, failing with a *ValidationError on mismatch.
func (s *Schema[T]) Validate(raw map[string]any) (T, error) {
	p := s.decode(raw)
	return p.typed, p.err
}

// Encode renders v as a JSON object.
func (s *Schema[T]) Encode(v T) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode agent data: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("agent data must encode to a JSON object: %w", err)
	}
	return out, nil
}

// payload is a record decoded once at the boundary: typed when it matches the
// schema, raw otherwise, so typed and untyped readers share one code path.
type payload[T any] struct {
	raw   map[string]any
	typed T
	err   error
}

func (p payload[T]) valid() bool { return p.err == nil }

// normalized returns the schema-conformant object for valid payloads and the
// raw object otherwise.
func (p payload[T]) normalized(s *Schema[T]) map[string]any {
	if !p.valid() {
		return p.raw
	}
	out, err := s.Encode(p.typed)
	if err != nil {
		return p.raw
	}
	return out
}

func (s *Schema[T]) decode(raw map[string]any) payload[T] {
	p := payload[T]{raw: raw}
	if raw == nil {
		raw = map[string]any{}
	}

	if s != nil && s.jsonSchema != nil {
		doc, err := jsonRoundTrip(raw)
		if err == nil {
			err = s.jsonSchema.Validate(doc)
		}
		if err != nil {
			p.err = &ValidationError{Data: p.raw, Err: err}
			return p
		}
	}

	var (
		typed T
		meta  mapstructure.Metadata
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     &typed,
		Metadata:   &meta,
		Squash:     true,
		DecodeHook: mapstructure.DecodeHookFuncType(jsonUnmarshalerHook),
	})
	if err != nil {
		p.err = &ValidationError{Data: p.raw, Err: err}
		return p
	}
	err = decoder.Decode(raw)
	if missing := missingFields(reflect.TypeFor[T](), meta.Unset); len(missing) > 0 {
		err = errors.Join(err, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if err != nil {
		p.err = &ValidationError{Data: p.raw, Err: err}
		return p
	}
	p.typed = typed
	return p
}

var unmarshalerType = reflect.TypeFor[json.Unmarshaler]()

// missingFields returns the entries of unset that name required fields of t.
// A field is required unless it is a pointer, tagged omitempty or skipped.
func missingFields(t reflect.Type, unset []string) []string {
	if len(unset) == 0 {
		return nil
	}
	required := make(map[string]struct{})
	collectRequired(t, "", required)

	var missing []string
	for _, name := range unset {
		if _, ok := required[name]; ok {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}

func collectRequired(t reflect.Type, prefix string, out map[string]struct{}) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || reflect.PointerTo(t).Implements(unmarshalerType) {
		return
	}

	for i := range t.NumField() {
		f := t.Field(i)
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}
		if f.Anonymous && name == "" {
			collectRequired(f.Type, prefix, out)
			continue
		}
		if name == "" {
			name = f.Name
		}
		if f.Type.Kind() == reflect.Pointer || slices.Contains(strings.Split(opts, ","), "omitempty") {
			continue
		}

		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = struct{}{}
		collectRequired(f.Type, path, out)
	}
}

// jsonUnmarshalerHook hands types with their own JSON decoding (time.Time,
// metadata trees) to encoding/json instead of decoding them field by field.
func jsonUnmarshalerHook(from, to reflect.Type, data any) (any, error) {
	if data == nil || from == to || !reflect.PointerTo(to).Implements(unmarshalerType) {
		return data, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	target := reflect.New(to)
	if err := json.Unmarshal(encoded, target.Interface()); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

func jsonRoundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}
