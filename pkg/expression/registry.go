package expression

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/request"
)

// ErrUnresolved is returned by evaluators that have no value for an
// expression. The dispatcher substitutes the fallback without logging.
var ErrUnresolved = errors.New("expression has no value")

// Evaluator resolves the part of a placeholder that follows its name.
type Evaluator interface {
	Name() string
	Eval(expr string, ctx *Context) (string, error)
}

// Context is the exchange state visible to evaluators.
type Context struct {
	// Ctx carries cancellation and exchange-scoped values to evaluators
	// that perform I/O. Nil means context.Background().
	Ctx context.Context

	Request *request.Request
	// Response is nil until the response has been written.
	Response *request.Response
	// Values carries collaborator-provided data, read by context.<key>.
	Values map[string]any
}

// Std returns Ctx, or context.Background() when it is unset.
func (c *Context) Std() context.Context {
	if c == nil || c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// ServerInfo describes the running listener for the system evaluator.
type ServerInfo struct {
	Port int
	URL  string
}

// Registry holds named evaluators and dispatches placeholders to them.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
	log        *slog.Logger
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	log    *slog.Logger
	server ServerInfo
	clock  Clock
	random *randomEvaluator
}

// WithLogger sets the logger used for evaluation warnings.
func WithLogger(log *slog.Logger) Option {
	return func(o *registryOptions) { o.log = log }
}

// WithServer sets the values reported by system.server.*.
func WithServer(info ServerInfo) Option {
	return func(o *registryOptions) { o.server = info }
}

// WithClock replaces the clock used by datetime.*.
func WithClock(clock Clock) Option {
	return func(o *registryOptions) { o.clock = clock }
}

// WithSeed makes random.* deterministic.
func WithSeed(seed uint64) Option {
	return func(o *registryOptions) { o.random = newSeededRandom(seed) }
}

// NewRegistry creates a registry with the built-in evaluators: random,
// datetime, system, context and expr.
func NewRegistry(opts ...Option) *Registry {
	o := registryOptions{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	if o.random == nil {
		o.random = newRandom()
	}

	r := &Registry{
		evaluators: make(map[string]Evaluator),
		log:        logging.For(o.log, "expression"),
	}
	r.Register(o.random)
	r.Register(&datetimeEvaluator{clock: o.clock})
	r.Register(&systemEvaluator{info: o.server})
	r.Register(&contextEvaluator{})
	r.Register(newExprEvaluator())
	return r
}

// Register adds or replaces an evaluator.
func (r *Registry) Register(e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[e.Name()] = e
}

// Lookup returns the evaluator registered under name.
func (r *Registry) Lookup(name string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[name]
	return e, ok
}

// SetServer updates the values reported by system.server.*, for listeners
// whose port is only known after binding.
func (r *Registry) SetServer(info ServerInfo) {
	r.Register(&systemEvaluator{info: info})
}

// Eval replaces every ${...} placeholder in template. Text outside
// placeholders is kept verbatim; an unterminated placeholder is left as-is.
func (r *Registry) Eval(template string, ctx *Context) string {
	if !strings.Contains(template, "${") {
		return template
	}

	var sb strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := closingBrace(rest, start+2)
		if end < 0 {
			r.log.Warn("unterminated placeholder", "template", template)
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:start])
		sb.WriteString(r.EvalExpression(rest[start+2:end], ctx))
		rest = rest[end+1:]
	}
	return sb.String()
}

// EvalExpression resolves a single placeholder body, without the
// surrounding "${" and "}".
func (r *Registry) EvalExpression(raw string, ctx *Context) string {
	v, _ := r.Resolve(raw, ctx)
	return v
}

// Resolve is EvalExpression that also reports whether an evaluator produced
// a value. A fallback counts as no value.
func (r *Registry) Resolve(raw string, ctx *Context) (string, bool) {
	expr, fallback, hasFallback := splitFallback(raw)
	or := func() (string, bool) {
		if hasFallback {
			return r.Eval(fallback, ctx), false
		}
		return "", false
	}
	// Placeholders nested in the expression are resolved first.
	if strings.Contains(expr, "${") {
		expr = r.Eval(expr, ctx)
	}

	name, rest := splitName(strings.TrimSpace(expr))
	if name == "" {
		r.log.Warn("unparseable expression", "expression", raw)
		return or()
	}
	e, ok := r.Lookup(name)
	if !ok {
		r.log.Warn("unknown expression evaluator", "evaluator", name, "expression", raw)
		return or()
	}
	if ctx == nil {
		ctx = &Context{}
	}

	v, err := safeEval(e, rest, ctx)
	if err != nil {
		if errors.Is(err, ErrUnresolved) {
			r.log.Debug("expression unresolved", "expression", raw)
		} else {
			r.log.Warn("expression evaluation failed", "expression", raw, "error", err)
		}
		return or()
	}
	return v, true
}

// safeEval shields the dispatcher from evaluators that panic.
func safeEval(e Evaluator, expr string, ctx *Context) (v string, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = "", errors.New("evaluator panic")
		}
	}()
	return e.Eval(expr, ctx)
}

func splitFallback(raw string) (string, string, bool) {
	i := indexOutsideQuotes(raw, ":-")
	if i < 0 {
		return raw, "", false
	}
	return raw[:i], raw[i+2:], true
}

func splitName(expr string) (string, string) {
	if i := strings.IndexByte(expr, '.'); i >= 0 {
		return expr[:i], expr[i+1:]
	}
	return expr, ""
}

// closingBrace finds the "}" closing a placeholder whose body starts at
// from, skipping nested braces and quoted strings.
func closingBrace(s string, from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func indexOutsideQuotes(s, sep string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], "${") {
			if end := closingBrace(s, i+2); end >= 0 {
				i = end
				continue
			}
		}
		if strings.HasPrefix(s[i:], sep) {
			return i
		}
	}
	return -1
}
