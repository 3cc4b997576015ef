// Package template compiles a sensor's declarative field template.
//
// A template is a nested mapping. Every field F may carry sibling
// annotation keys in the same mapping which configure how F is
// synthesized:
//
//	F-range                  [min, max] bound for uniform random values
//	F-outlier                literal emitted while F is in outlier state
//	F-outlier-every-secs     outlier trigger period, in whole seconds
//	F-outlier-duration-secs  how long an outlier lasts, in seconds
//	F-cyclic-vector          marker: F's own value is a sequence to rotate
//
// Annotations are resolved once, at compile time, into a Field descriptor.
// They are never emitted as data.
package template

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ppanyukov/sensorgen/pkg/randval"
)

// Annotation key suffixes.
const (
	SuffixRange               = "-range"
	SuffixOutlier             = "-outlier"
	SuffixOutlierEverySecs    = "-outlier-every-secs"
	SuffixOutlierDurationSecs = "-outlier-duration-secs"
	SuffixCyclicVector        = "-cyclic-vector"
)

var suffixes = []string{
	SuffixRange,
	SuffixOutlier,
	SuffixOutlierEverySecs,
	SuffixOutlierDurationSecs,
	SuffixCyclicVector,
}

// ErrInvalid is returned for templates which cannot be synthesized.
var ErrInvalid = errors.New("invalid template")

// DefaultRange is used when a range annotation is present but malformed.
var DefaultRange = Range{Min: randval.DefaultMinValue, Max: randval.DefaultMaxValue}

// IsAnnotation reports whether key is an annotation key rather than a field.
func IsAnnotation(key string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// Template is a compiled mapping. Entries keep document order.
type Template struct {
	Entries []Entry
}

// Entry is either a nested template or a scalar leaf field, never both.
type Entry struct {
	Name   string
	Nested *Template
	Field  *Field
}

// Range is an inclusive numeric bound.
type Range struct {
	Min float64
	Max float64
}

// Field describes how a scalar leaf is synthesized.
type Field struct {
	Name string

	// Value is the field's own stored value. For cyclic fields it is
	// the sequence, also available as Cyclic.
	Value interface{}

	// Range is nil when no range annotation is present.
	Range *Range

	// Outlier is the outlier literal, meaningful when HasOutlier is set.
	Outlier    interface{}
	HasOutlier bool

	// OutlierEverySecs is zero when the field never enters outlier state.
	OutlierEverySecs int
	OutlierDuration  time.Duration

	// Cyclic is non-nil when the cyclic marker is present.
	Cyclic []interface{}
}

// IsLiteral reports whether the field is emitted unchanged.
func (f *Field) IsLiteral() bool {
	return f.Range == nil && !f.HasOutlier && f.Cyclic == nil
}

// IsCyclic reports whether the field rotates through a sequence.
func (f *Field) IsCyclic() bool {
	return f.Cyclic != nil
}

// Parse compiles a JSON or YAML template document.
func Parse(doc []byte) (*Template, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(doc, &node); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "decode template: %v", err)
	}
	return Compile(&node)
}

// Compile compiles a decoded template document.
func Compile(node *yaml.Node) (*Template, error) {
	return compileMapping(resolve(node), "")
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return nil
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		case 0:
			return nil
		default:
			return node
		}
	}
	return nil
}

func compileMapping(node *yaml.Node, path string) (*Template, error) {
	if node == nil {
		return &Template{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Wrapf(ErrInvalid, "%s: expected a mapping, got %s", pathOrRoot(path), kindName(node.Kind))
	}

	values := make(map[string]*yaml.Node, len(node.Content)/2)
	var keys []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := resolve(node.Content[i])
		if k == nil || k.Kind != yaml.ScalarNode {
			return nil, errors.Wrapf(ErrInvalid, "%s: mapping keys must be scalars", pathOrRoot(path))
		}
		if _, dup := values[k.Value]; dup {
			return nil, errors.Wrapf(ErrInvalid, "%s: duplicate key %q", pathOrRoot(path), k.Value)
		}
		values[k.Value] = resolve(node.Content[i+1])
		keys = append(keys, k.Value)
	}

	t := &Template{}
	for _, key := range keys {
		if IsAnnotation(key) {
			continue
		}

		value := values[key]
		fieldPath := join(path, key)

		if value != nil && value.Kind == yaml.MappingNode {
			nested, err := compileMapping(value, fieldPath)
			if err != nil {
				return nil, err
			}
			t.Entries = append(t.Entries, Entry{Name: key, Nested: nested})
			continue
		}

		f, err := compileField(key, fieldPath, value, values)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, Entry{Name: key, Field: f})
	}

	return t, nil
}

func compileField(name, path string, value *yaml.Node, siblings map[string]*yaml.Node) (*Field, error) {
	f := &Field{Name: name}

	var err error
	if f.Value, err = decode(value); err != nil {
		return nil, errors.Wrapf(err, "%s: decode value", path)
	}

	if n, ok := siblings[name+SuffixRange]; ok {
		r := parseRange(n)
		f.Range = &r
	}

	if n, ok := siblings[name+SuffixOutlier]; ok {
		if f.Outlier, err = decode(n); err != nil {
			return nil, errors.Wrapf(err, "%s: decode outlier", path)
		}
		f.HasOutlier = true
	}

	d, hasDuration := siblings[name+SuffixOutlierDurationSecs]
	if hasDuration {
		secs, ok := number(d)
		if !ok || secs < 0 {
			return nil, errors.Wrapf(ErrInvalid, "%s%s must be a non-negative number", path, SuffixOutlierDurationSecs)
		}
		f.OutlierDuration = time.Duration(secs * float64(time.Second))
	}

	if n, ok := siblings[name+SuffixOutlierEverySecs]; ok {
		every, ok := wholeNumber(n)
		if !ok || every <= 0 {
			return nil, errors.Wrapf(ErrInvalid, "%s%s must be a positive integer", path, SuffixOutlierEverySecs)
		}
		if !hasDuration {
			return nil, errors.Wrapf(ErrInvalid, "%s%s requires %s%s", path, SuffixOutlierEverySecs, path, SuffixOutlierDurationSecs)
		}
		f.OutlierEverySecs = every
	}

	if _, ok := siblings[name+SuffixCyclicVector]; ok {
		seq, ok := f.Value.([]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrInvalid, "%s: cyclic field value must be a sequence", path)
		}
		if len(seq) == 0 {
			return nil, errors.Wrapf(ErrInvalid, "%s: cyclic sequence is empty", path)
		}
		f.Cyclic = seq
	}

	return f, nil
}

func decode(node *yaml.Node) (interface{}, error) {
	if node == nil {
		return nil, nil
	}
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseRange falls back to DefaultRange for anything but two numbers.
func parseRange(node *yaml.Node) Range {
	if node == nil || node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return DefaultRange
	}
	min, ok := number(resolve(node.Content[0]))
	if !ok {
		return DefaultRange
	}
	max, ok := number(resolve(node.Content[1]))
	if !ok {
		return DefaultRange
	}
	return Range{Min: min, Max: max}
}

func number(node *yaml.Node) (float64, bool) {
	if node == nil || node.Kind != yaml.ScalarNode {
		return 0, false
	}
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	return 0, false
}

func wholeNumber(node *yaml.Node) (int, bool) {
	f, ok := number(node)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "template"
	}
	return path
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	}
	return fmt.Sprintf("kind %d", k)
}
