package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/getmockd/stubd/internal/bodyquery"
	"github.com/getmockd/stubd/internal/router"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/store"
)

// ValidationError is a single problem found in a configuration.
type ValidationError struct {
	Path    string // e.g. "resources[0].queryParams.page"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult collects every problem found in a configuration.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: message})
}

// Merge appends other's errors, prefixing their paths.
func (r *ValidationResult) Merge(prefix string, other *ValidationResult) {
	for _, e := range other.Errors {
		path := e.Path
		if prefix != "" {
			path = joinPath(prefix, path)
		}
		r.AddError(path, e.Message)
	}
}

// Err returns r as an error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return r
}

// Prepare validates resources and compiles their regular expressions and
// body queries. It must run before resources are matched; Load does it for
// files read from disk.
func Prepare(resources []*Resource) *ValidationResult {
	result := &ValidationResult{}
	for i, r := range resources {
		validateResource(r, fmt.Sprintf("resources[%d]", i), result)
	}
	return result
}

func validateResource(r *Resource, path string, result *ValidationResult) {
	if r.Path != "" {
		if _, err := router.New().AddRoute(r.Method, r.Path); err != nil {
			result.AddError(joinPath(path, "path"), err.Error())
		}
	}

	groups := []struct {
		name  string
		conds Conditions
	}{
		{"pathParams", r.PathParams},
		{"queryParams", r.QueryParams},
		{"requestHeaders", r.RequestHeaders},
		{"formParams", r.FormParams},
	}
	for _, g := range groups {
		for _, name := range sortedKeys(g.conds) {
			c := g.conds[name]
			if c == nil {
				result.AddError(joinPath(path, g.name+"."+name), "condition is empty")
				continue
			}
			validateCondition(c, joinPath(path, g.name+"."+name), result)
		}
	}

	if r.RequestBody != nil {
		validateBody(r.RequestBody, joinPath(path, "requestBody"), result)
	}

	for i, e := range r.Eval {
		p := joinPath(path, fmt.Sprintf("eval[%d]", i))
		if strings.TrimSpace(e.Expression) == "" {
			result.AddError(p+".expression", "required")
		}
		validateCondition(&e.Condition, p, result)
	}

	for _, name := range sortedKeys(r.Capture) {
		validateCapture(r.Capture[name], joinPath(path, "capture."+name), result)
	}

	if r.Response != nil {
		if r.Response.Content != "" && r.Response.File != "" {
			result.AddError(joinPath(path, "response"), "content and file are mutually exclusive")
		}
		if c := r.Response.StatusCode; c != 0 && (c < 100 || c > 599) {
			result.AddError(joinPath(path, "response.statusCode"), fmt.Sprintf("invalid status code %d", c))
		}
	}
}

func validateCondition(c *Condition, path string, result *ValidationResult) {
	if !c.Operator.Valid() {
		result.AddError(path+".operator", fmt.Sprintf("unsupported operator %q", c.Operator))
		return
	}
	if err := c.compile(); err != nil {
		result.AddError(path+".value", "invalid regular expression: "+err.Error())
	}
}

func validateBody(b *BodyCondition, path string, result *ValidationResult) {
	if b.JSONPath != "" && b.XPath != "" {
		result.AddError(path, "jsonPath and xPath are mutually exclusive")
	}
	if b.JSONPath != "" {
		x, err := bodyquery.CompileJSONPath(b.JSONPath)
		if err != nil {
			result.AddError(path+".jsonPath", err.Error())
		}
		b.jsonPath = x
	}
	if b.XPath != "" {
		if err := bodyquery.CompileXPath(b.XPath); err != nil {
			result.AddError(path+".xPath", err.Error())
		}
	}
	validateCondition(&b.Condition, path, result)
	for i, sub := range b.AllOf {
		validateBody(sub, fmt.Sprintf("%s.allOf[%d]", path, i), result)
	}
	for i, sub := range b.AnyOf {
		validateBody(sub, fmt.Sprintf("%s.anyOf[%d]", path, i), result)
	}
}

func validateCapture(c *Capture, path string, result *ValidationResult) {
	if c == nil {
		result.AddError(path, "capture is empty")
		return
	}
	if c.Phase != "" {
		if _, err := store.ParsePhase(c.Phase); err != nil {
			result.AddError(path+".phase", err.Error())
		}
	}
	switch sources := c.sources(); len(sources) {
	case 1:
	case 0:
		result.AddError(path, "one of expression, jsonPath, xPath, pathParam, queryParam, requestHeader, formParam or const is required")
	default:
		result.AddError(path, "only one source allowed, got "+strings.Join(sources, ", "))
	}
	if c.JSONPath != "" {
		if _, err := bodyquery.CompileJSONPath(c.JSONPath); err != nil {
			result.AddError(path+".jsonPath", err.Error())
		}
	}
	if c.XPath != "" {
		if err := bodyquery.CompileXPath(c.XPath); err != nil {
			result.AddError(path+".xPath", err.Error())
		}
	}
	if code, ok := exprProgram(c.Expression); ok {
		if err := expression.Compile(code); err != nil {
			result.AddError(path+".expression", "invalid expr program: "+err.Error())
		}
	}
}

// exprProgram extracts the program from a capture expression that is
// exactly one ${expr....} placeholder without fallback.
func exprProgram(s string) (string, bool) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(s), "${expr.")
	if !ok || strings.Contains(inner, "${") || !strings.HasSuffix(inner, "}") || strings.Contains(inner, ":-") {
		return "", false
	}
	return strings.TrimSuffix(inner, "}"), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func joinPath(prefix, path string) string {
	switch {
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	default:
		return prefix + "." + path
	}
}
