package tools_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2", "3"},
		{"(3 + 4) * 2", "14"},
		{"10 / 4", "2.5"},
		{"max(2, 7)", "7"},
		{"2 > 1", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := tools.Calculator{}.Call(context.Background(), map[string]interface{}{"expression": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := tools.Calculator{}.Call(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
}

func TestClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := tools.Clock{Now: func() time.Time { return fixed }}

	out, err := c.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", out)

	_, err = c.Call(context.Background(), map[string]interface{}{"timezone": "Not/AZone"})
	assert.Error(t, err)
}

func TestRegistry_Filter(t *testing.T) {
	r := tools.NewDefaultRegistry()
	got := r.Filter([]string{"datetime", "missing", "calculator"})
	require.Len(t, got, 2)
	assert.Equal(t, "datetime", got[0].Name())
	assert.Equal(t, "calculator", got[1].Name())

	assert.Empty(t, r.Filter(nil))
	assert.Len(t, r.Describe(), 2)

	_, err := r.Get("nope")
	assert.Error(t, err)
}
