// Package bodyquery extracts values from JSON and XML documents.
//
// Queries starting with "$" are JSONPath expressions evaluated with ojg;
// anything else is treated as an XPath-style element path evaluated with
// etree. A trailing "/@name" selects an attribute of the matched element.
package bodyquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrInvalidQuery is returned when a JSONPath or XPath expression cannot be parsed.
var ErrInvalidQuery = errors.New("invalid body query")

// IsJSONPath reports whether query is a JSONPath expression.
func IsJSONPath(query string) bool {
	return strings.HasPrefix(query, "$")
}

// Query evaluates query against body and returns the first result as a string.
// The boolean is false when the document does not parse or nothing matched.
func Query(body, query string) (string, bool, error) {
	if IsJSONPath(query) {
		v, ok, err := JSONPath(body, query)
		if err != nil || !ok {
			return "", false, err
		}
		return Stringify(v), true, nil
	}
	return XPath(body, query)
}

// CompileJSONPath validates a JSONPath expression.
func CompileJSONPath(path string) (jp.Expr, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidQuery, path, err)
	}
	return x, nil
}

// CompileXPath validates an element path.
func CompileXPath(path string) error {
	elemPath, _ := splitAttr(path)
	if _, err := etree.CompilePath(elemPath); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidQuery, path, err)
	}
	return nil
}

// JSONPath returns the first value selected by path. Bodies that are not
// JSON yield no value rather than an error.
func JSONPath(body, path string) (any, bool, error) {
	x, err := CompileJSONPath(path)
	if err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, false, nil
	}
	data, err := oj.ParseString(body)
	if err != nil {
		return nil, false, nil
	}
	results := x.Get(data)
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// XPath returns the trimmed text of the first element matched by path, or
// the attribute value for paths ending in "/@name". Bodies that are not XML
// yield no value rather than an error.
func XPath(body, path string) (string, bool, error) {
	elemPath, attr := splitAttr(path)
	compiled, err := etree.CompilePath(elemPath)
	if err != nil {
		return "", false, fmt.Errorf("%w %q: %v", ErrInvalidQuery, path, err)
	}
	if strings.TrimSpace(body) == "" {
		return "", false, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return "", false, nil
	}
	elem := doc.FindElementPath(compiled)
	if elem == nil {
		return "", false, nil
	}
	if attr != "" {
		a := elem.SelectAttr(attr)
		if a == nil {
			return "", false, nil
		}
		return a.Value, true, nil
	}
	return strings.TrimSpace(elem.Text()), true, nil
}

// Stringify renders a decoded JSON value the way it is compared and stored:
// strings verbatim, scalars in their JSON form, objects and arrays as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func splitAttr(path string) (string, string) {
	if i := strings.LastIndex(path, "/@"); i >= 0 {
		return path[:i], path[i+2:]
	}
	return path, ""
}
