package expression

import (
	"fmt"
	"strconv"
	"time"
)

// Clock supplies the current time to datetime.*.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

const (
	isoDate     = "2006-01-02"
	isoDateTime = "2006-01-02T15:04:05.000Z07:00"
)

type datetimeEvaluator struct {
	clock Clock
}

func (e *datetimeEvaluator) Name() string { return "datetime" }

func (e *datetimeEvaluator) Eval(expr string, _ *Context) (string, error) {
	now := e.clock.Now()
	switch expr {
	case "now.millis":
		return strconv.FormatInt(now.UnixMilli(), 10), nil
	case "now.nanos":
		return strconv.FormatInt(now.UnixNano(), 10), nil
	case "now.iso8601_date":
		return now.Format(isoDate), nil
	case "now.iso8601_datetime":
		return now.Truncate(time.Millisecond).Format(isoDateTime), nil
	default:
		return "", fmt.Errorf("datetime: unknown expression %q", expr)
	}
}
