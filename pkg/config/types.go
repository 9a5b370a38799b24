package config

import (
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// DefaultCaptureStore is the store captures write to when none is named.
const DefaultCaptureStore = "request"

// File is one parsed configuration file.
type File struct {
	// Plugin names the kind of mock this file declares.
	Plugin string `json:"plugin" yaml:"plugin"`

	// Root holds resource fields declared at the top level of the file.
	// It only takes part in matching when it declares something.
	Root Resource `json:"-" yaml:",inline"`

	Resources []*Resource `json:"resources,omitempty" yaml:"resources,omitempty"`
	System    *System     `json:"system,omitempty" yaml:"system,omitempty"`

	// Path is the file the configuration was read from.
	Path string `json:"-" yaml:"-"`
}

// Resource is one declared mock endpoint: where it lives, what a request must
// look like to select it, what to capture and what to send back.
type Resource struct {
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	PathParams     Conditions       `json:"pathParams,omitempty" yaml:"pathParams,omitempty"`
	QueryParams    Conditions       `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	RequestHeaders Conditions       `json:"requestHeaders,omitempty" yaml:"requestHeaders,omitempty"`
	FormParams     Conditions       `json:"formParams,omitempty" yaml:"formParams,omitempty"`
	RequestBody    *BodyCondition   `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Eval           []*EvalCondition `json:"eval,omitempty" yaml:"eval,omitempty"`

	Capture  map[string]*Capture `json:"capture,omitempty" yaml:"capture,omitempty"`
	Response *Response           `json:"response,omitempty" yaml:"response,omitempty"`

	// Index is the declaration order across all loaded files. Earlier
	// resources win ties during selection.
	Index int `json:"-" yaml:"-"`
	// Source is the file the resource was declared in.
	Source string `json:"-" yaml:"-"`
}

// Declares reports whether r declares anything at all. An undeclared root
// resource is not registered.
func (r *Resource) Declares() bool {
	return r.Path != "" || r.Method != "" ||
		len(r.PathParams) > 0 || len(r.QueryParams) > 0 ||
		len(r.RequestHeaders) > 0 || len(r.FormParams) > 0 ||
		r.RequestBody != nil || len(r.Eval) > 0 ||
		len(r.Capture) > 0 || r.Response != nil
}

// Name is a short human-readable label for logs and CLI output.
func (r *Resource) Name() string {
	method := r.Method
	if method == "" {
		method = "*"
	}
	path := r.Path
	if path == "" {
		path = "(any path)"
	}
	return strings.ToUpper(method) + " " + path
}

// Condition compares one request value with an expected value.
//
// In YAML a condition is either a scalar, meaning EqualTo that value, or a
// mapping with value and operator.
type Condition struct {
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`

	pattern *regexp.Regexp
}

// Op returns the operator, defaulting to EqualTo.
func (c *Condition) Op() Operator {
	if c.Operator == "" {
		return EqualTo
	}
	return c.Operator
}

// Pattern returns the compiled regular expression for Matches and
// NotMatches conditions. The expression must match the whole value.
func (c *Condition) Pattern() (*regexp.Regexp, error) {
	if c.pattern != nil {
		return c.pattern, nil
	}
	return regexp.Compile(anchored(c.Value))
}

func anchored(expr string) string {
	return `^(?:` + expr + `)$`
}

func (c *Condition) compile() error {
	if !c.Op().IsRegex() {
		return nil
	}
	re, err := regexp.Compile(anchored(c.Value))
	if err != nil {
		return err
	}
	c.pattern = re
	return nil
}

// Conditions maps a parameter or header name to its condition.
type Conditions map[string]*Condition

// BodyCondition matches the request body. Without JSONPath or XPath the
// whole body is compared. AllOf and AnyOf combine nested body conditions.
type BodyCondition struct {
	Condition

	JSONPath string           `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	XPath    string           `json:"xPath,omitempty" yaml:"xPath,omitempty"`
	AllOf    []*BodyCondition `json:"allOf,omitempty" yaml:"allOf,omitempty"`
	AnyOf    []*BodyCondition `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`

	jsonPath jp.Expr
}

// CompiledJSONPath returns the parsed JSONPath, or nil when the condition
// does not use one or has not been validated.
func (b *BodyCondition) CompiledJSONPath() jp.Expr {
	return b.jsonPath
}

// EvalCondition compares the result of an expression with a value.
type EvalCondition struct {
	Condition

	Expression string `json:"expression" yaml:"expression"`
}

// Capture copies a value from the exchange into a store.
type Capture struct {
	// Enabled defaults to true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Store defaults to DefaultCaptureStore.
	Store string `json:"store,omitempty" yaml:"store,omitempty"`
	// Key is evaluated as a template. It defaults to the capture name.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	// Phase is REQUEST_RECEIVED (default) or RESPONSE_SENT.
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Exactly one source is set.
	Expression    string  `json:"expression,omitempty" yaml:"expression,omitempty"`
	JSONPath      string  `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	XPath         string  `json:"xPath,omitempty" yaml:"xPath,omitempty"`
	PathParam     string  `json:"pathParam,omitempty" yaml:"pathParam,omitempty"`
	QueryParam    string  `json:"queryParam,omitempty" yaml:"queryParam,omitempty"`
	RequestHeader string  `json:"requestHeader,omitempty" yaml:"requestHeader,omitempty"`
	FormParam     string  `json:"formParam,omitempty" yaml:"formParam,omitempty"`
	Const         *string `json:"const,omitempty" yaml:"const,omitempty"`
}

// IsEnabled reports whether the capture runs.
func (c *Capture) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StoreName returns the target store.
func (c *Capture) StoreName() string {
	if c.Store == "" {
		return DefaultCaptureStore
	}
	return c.Store
}

func (c *Capture) sources() []string {
	var set []string
	add := func(name string, ok bool) {
		if ok {
			set = append(set, name)
		}
	}
	add("expression", c.Expression != "")
	add("jsonPath", c.JSONPath != "")
	add("xPath", c.XPath != "")
	add("pathParam", c.PathParam != "")
	add("queryParam", c.QueryParam != "")
	add("requestHeader", c.RequestHeader != "")
	add("formParam", c.FormParam != "")
	add("const", c.Const != nil)
	return set
}

// Response is the static response sent for a matched resource.
type Response struct {
	StatusCode int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Content    string            `json:"content,omitempty" yaml:"content,omitempty"`
	// File is read at response time. Relative paths are resolved against
	// the directory of the config file during loading.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// Template runs the body and header values through the expression
	// registry before sending.
	Template bool `json:"template,omitempty" yaml:"template,omitempty"`
}

// System holds settings that are not tied to a resource.
type System struct {
	Stores map[string]*StoreConfig `json:"stores,omitempty" yaml:"stores,omitempty"`
}

// StoreConfig seeds a durable store when the configuration is loaded.
type StoreConfig struct {
	PreloadData map[string]any `json:"preloadData,omitempty" yaml:"preloadData,omitempty"`
	// PreloadFile is a JSON object of key/value pairs.
	PreloadFile string `json:"preloadFile,omitempty" yaml:"preloadFile,omitempty"`
}
