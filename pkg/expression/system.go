package expression

import (
	"fmt"
	"strconv"
)

type systemEvaluator struct {
	info ServerInfo
}

func (e *systemEvaluator) Name() string { return "system" }

func (e *systemEvaluator) Eval(expr string, _ *Context) (string, error) {
	switch expr {
	case "server.port":
		if e.info.Port == 0 {
			return "", ErrUnresolved
		}
		return strconv.Itoa(e.info.Port), nil
	case "server.url":
		if e.info.URL == "" {
			return "", ErrUnresolved
		}
		return e.info.URL, nil
	default:
		return "", fmt.Errorf("system: unknown expression %q", expr)
	}
}
