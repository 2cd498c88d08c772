// Package attrpath walks dotted paths ("a.b.c") through generic key/value
// trees such as decoded YAML, JSON or BSON documents.
package attrpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPath = errors.New("attrpath: invalid path")

// Path is a parsed dotted attribute path.
type Path []string

// Parse splits raw on dots. Empty segments are rejected.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, raw)
		}
	}
	return Path(segments), nil
}

func (p Path) String() string { return strings.Join(p, ".") }

// Lookup returns the value at p, or false if any segment is absent.
// Numeric segments index into lists.
func (p Path) Lookup(tree map[string]any) (any, bool) {
	var cur any = tree
	for _, seg := range p {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// LookupString returns the scalar at p formatted as a string. Maps, lists,
// nil and blank strings count as absent.
func (p Path) LookupString(tree map[string]any) (string, bool) {
	v, ok := p.Lookup(tree)
	if !ok {
		return "", false
	}
	return Scalar(v)
}

// Scalar formats v if it is a string, number or bool.
func Scalar(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
