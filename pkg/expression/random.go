package expression

import (
	"fmt"
	mathrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz"
	digits   = "0123456789"

	// maxLength caps the length argument of the generators.
	maxLength = 64 << 10
)

// randomEvaluator implements random.<fn>(key=value,...).
type randomEvaluator struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

func newRandom() *randomEvaluator {
	return &randomEvaluator{}
}

func newSeededRandom(seed uint64) *randomEvaluator {
	return &randomEvaluator{rng: mathrand.New(mathrand.NewPCG(seed, seed))}
}

func (e *randomEvaluator) Name() string { return "random" }

func (e *randomEvaluator) Eval(expr string, _ *Context) (string, error) {
	fn, args, err := parseCall(expr)
	if err != nil {
		return "", err
	}

	length := 1
	if v, ok := args["length"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", fmt.Errorf("random.%s: invalid length %q", fn, v)
		}
		if n > maxLength {
			return "", fmt.Errorf("random.%s: length %d exceeds %d", fn, n, maxLength)
		}
		length = n
	}
	upper := false
	if v, ok := args["uppercase"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", fmt.Errorf("random.%s: invalid uppercase %q", fn, v)
		}
		upper = b
	}

	var out string
	switch fn {
	case "alphabetic":
		out = e.pick(alphabet, length)
	case "alphanumeric":
		out = e.pick(alphabet+digits, length)
	case "numeric":
		out = e.pick(digits, length)
	case "any":
		chars, ok := args["chars"]
		if !ok || chars == "" {
			return "", fmt.Errorf("random.any: chars is required")
		}
		out = e.pick(chars, length)
	case "uuid":
		out = e.uuid()
	default:
		return "", fmt.Errorf("random: unknown function %q", fn)
	}

	if upper {
		out = strings.ToUpper(out)
	}
	return out, nil
}

func (e *randomEvaluator) pick(chars string, n int) string {
	runes := []rune(chars)
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteRune(runes[e.intN(len(runes))])
	}
	return sb.String()
}

// intN returns a random int in [0, n) from the seeded source if present,
// otherwise from the global math/rand/v2 source.
func (e *randomEvaluator) intN(n int) int {
	if e.rng == nil {
		return mathrand.IntN(n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}

func (e *randomEvaluator) uuid() string {
	if e.rng == nil {
		return uuid.NewString()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var b [16]byte
	for i := range b {
		b[i] = byte(e.rng.IntN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}

// parseCall splits "fn(k=v,k2=\"v,2\")" into its name and arguments.
// The parentheses are optional.
func parseCall(expr string) (string, map[string]string, error) {
	expr = strings.TrimSpace(expr)
	open := strings.IndexByte(expr, '(')
	if open < 0 {
		return expr, map[string]string{}, nil
	}
	if !strings.HasSuffix(expr, ")") {
		return "", nil, fmt.Errorf("unbalanced parentheses in %q", expr)
	}
	fn := strings.TrimSpace(expr[:open])
	args, err := parseArgs(expr[open+1 : len(expr)-1])
	if err != nil {
		return "", nil, err
	}
	return fn, args, nil
}

func parseArgs(s string) (map[string]string, error) {
	args := make(map[string]string)
	for _, part := range splitArgs(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not key=value", part)
		}
		args[strings.TrimSpace(k)] = unquote(strings.TrimSpace(v))
	}
	return args, nil
}

func splitArgs(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
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
		case c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		inner := v[1 : len(v)-1]
		return strings.NewReplacer(`\`+string(v[0]), string(v[0]), `\\`, `\`).Replace(inner)
	}
	return v
}
