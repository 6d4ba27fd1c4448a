package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
)

// ── Calculator ──────────────────────────────────────────────

// Calculator evaluates arithmetic and boolean expressions with expr.
type Calculator struct{}

func (Calculator) Name() string { return "calculator" }

func (Calculator) Description() string {
	return "Evaluates a math expression such as \"(3 + 4) * 2\" or \"max(2, 7) / 3\" and returns the result."
}

func (Calculator) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{"type": "string", "description": "The expression to evaluate"},
		},
		"required": []string{"expression"},
	}
}

func (Calculator) Call(_ context.Context, args map[string]interface{}) (string, error) {
	src, _ := args["expression"].(string)
	if src == "" {
		return "", fmt.Errorf("calculator: expression is required")
	}
	program, err := expr.Compile(src)
	if err != nil {
		return "", fmt.Errorf("calculator: %w", err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return "", fmt.Errorf("calculator: %w", err)
	}
	return fmt.Sprint(out), nil
}

// ── Clock ───────────────────────────────────────────────────

// Clock reports the current date and time.
type Clock struct {
	// Now overrides time.Now in tests.
	Now func() time.Time
}

func (Clock) Name() string { return "datetime" }

func (Clock) Description() string {
	return "Returns the current date and time in RFC 3339 format. Accepts an optional IANA timezone such as \"Europe/Lisbon\"."
}

func (Clock) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{"type": "string", "description": "IANA timezone name, UTC when omitted"},
		},
	}
}

func (c Clock) Call(_ context.Context, args map[string]interface{}) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := time.UTC
	if tz, _ := args["timezone"].(string); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("datetime: unknown timezone %q", tz)
		}
		loc = l
	}
	return now().In(loc).Format(time.RFC3339), nil
}
