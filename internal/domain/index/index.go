// Package index models observed index state: field mappings, descriptors and
// alias bindings.
package index

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Properties is a field mapping tree: field name → mapping object.
type Properties map[string]any

// Clone returns a deep copy with JSON-normalized values (numbers become float64).
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	return Properties(normalizeMap(p))
}

// Names returns the top-level field names in sorted order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the mapping object of a top-level field.
func (p Properties) Field(name string) (map[string]any, bool) {
	raw, ok := p[name]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

// With returns a copy of p extended with extra. A name present in both is an error.
func (p Properties) With(extra Properties) (Properties, error) {
	out := p.Clone()
	if out == nil {
		out = Properties{}
	}
	for _, name := range extra.Names() {
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("field %q already exists", name)
		}
		out[name] = normalize(extra[name])
	}
	return out, nil
}

// Diff reports every structural difference between a requested mapping and the
// mapping the cluster accepted. An empty result means the two are identical.
func Diff(requested, accepted Properties) []string {
	var diffs []string
	diffValue("", map[string]any(requested.Clone()), map[string]any(accepted.Clone()), &diffs)
	sort.Strings(diffs)
	return diffs
}

func diffValue(path string, want, got any, out *[]string) {
	wm, wIsMap := want.(map[string]any)
	gm, gIsMap := got.(map[string]any)
	if wIsMap && gIsMap {
		for k, wv := range wm {
			p := joinPath(path, k)
			gv, ok := gm[k]
			if !ok {
				*out = append(*out, fmt.Sprintf("%s: missing (requested %s)", p, render(wv)))
				continue
			}
			diffValue(p, wv, gv, out)
		}
		for k, gv := range gm {
			if _, ok := wm[k]; !ok {
				*out = append(*out, fmt.Sprintf("%s: unexpected (accepted %s)", joinPath(path, k), render(gv)))
			}
		}
		return
	}
	if !reflect.DeepEqual(want, got) {
		*out = append(*out, fmt.Sprintf("%s: requested %s, accepted %s", path, render(want), render(got)))
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func render(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// normalize converts arbitrary JSON-like values to the shapes encoding/json produces.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case map[string]any:
		return normalizeMap(t)
	case Properties:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// Descriptor is an immutable snapshot of an index as observed at ReadAt.
// Re-read the cluster to observe newer state; never mutate a Descriptor.
type Descriptor struct {
	name       string
	properties Properties
	docCount   int64
	readAt     time.Time
}

// NewDescriptor captures an observed index state.
func NewDescriptor(name string, props Properties, docCount int64, readAt time.Time) Descriptor {
	return Descriptor{name: name, properties: props.Clone(), docCount: docCount, readAt: readAt}
}

// Name returns the concrete index name.
func (d Descriptor) Name() string { return d.name }

// Properties returns a copy of the observed field mappings.
func (d Descriptor) Properties() Properties { return d.properties.Clone() }

// DocCount returns the document count at ReadAt.
func (d Descriptor) DocCount() int64 { return d.docCount }

// ReadAt returns the observation time.
func (d Descriptor) ReadAt() time.Time { return d.readAt }

// HasField reports whether a top-level field is mapped.
func (d Descriptor) HasField(name string) bool {
	_, ok := d.properties[name]
	return ok
}

// IsZero reports whether the descriptor was never populated.
func (d Descriptor) IsZero() bool { return d.name == "" }

type descriptorJSON struct {
	Name       string     `json:"name"`
	Properties Properties `json:"properties,omitempty"`
	DocCount   int64      `json:"doc_count"`
	ReadAt     time.Time  `json:"read_at"`
}

// MarshalJSON implements json.Marshaler.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{Name: d.name, Properties: d.properties, DocCount: d.docCount, ReadAt: d.readAt})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var v descriptorJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = NewDescriptor(v.Name, v.Properties, v.DocCount, v.ReadAt)
	return nil
}

// AliasBinding is the alias → concrete index indirection all traffic goes through.
type AliasBinding struct {
	Alias string `json:"alias"`
	Index string `json:"index"`
}

// ValidateIndexName applies the cluster's index naming rules.
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("index name is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("index name %q too long (max 255 bytes)", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("index name %q is reserved", name)
	}
	if strings.ContainsAny(name[:1], "-_+") {
		return fmt.Errorf("index name %q must not start with '-', '_' or '+'", name)
	}
	if strings.ToLower(name) != name {
		return fmt.Errorf("index name %q must be lowercase", name)
	}
	if strings.ContainsAny(name, `\/*?"<>| ,#:`) {
		return fmt.Errorf("index name %q contains invalid characters", name)
	}
	return nil
}

// ValidateFieldName checks a top-level field name.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	if len(name) > 256 {
		return fmt.Errorf("field name %q too long (max 256)", name)
	}
	for _, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' && r != '-' {
			return fmt.Errorf("field name %q contains invalid characters", name)
		}
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("field name %q is reserved", name)
	}
	return nil
}
