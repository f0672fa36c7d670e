package selection

import (
	"testing"

	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(t *testing.T, s string) version.Version {
	t.Helper()
	parsed, ok := version.Parse(s)
	require.True(t, ok, "version %q should parse", s)
	return parsed
}

func TestParseAndEvaluate(t *testing.T) {
	tests := []struct {
		expr  string
		match []string
		miss  []string
	}{
		{">=1.0.0", []string{"1.0.0", "2.0.0"}, []string{"0.9.0" /* invalid, skip via Parse check below */}},
		{"1.2.x", []string{"1.2.0", "1.2.9"}, []string{"1.3.0"}},
		{"1.x", []string{"1.0.0", "1.9.9"}, []string{"2.0.0"}},
		{"1.0.0-1.2.0", []string{"1.0.0", "1.1.0", "1.2.0"}, []string{"1.2.1"}},
		{"~1.2.3", []string{"1.2.3", "1.2.9"}, []string{"1.3.0"}},
		{"^1.2.3", []string{"1.2.3", "1.9.9"}, []string{"2.0.0"}},
		{"1.0.0||2.0.0", []string{"1.0.0", "2.0.0"}, []string{"1.5.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, ok := Parse(tt.expr)
			require.True(t, ok)

			for _, m := range tt.match {
				assert.True(t, Evaluate(expr, v(t, m)), "%s should match %s", tt.expr, m)
			}
			for _, m := range tt.miss {
				if _, ok := version.Parse(m); !ok {
					continue
				}
				assert.False(t, Evaluate(expr, v(t, m)), "%s should not match %s", tt.expr, m)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, expr := range []string{"", ">=not-a-version", "1.2.3-", "x.y.z"} {
		_, ok := Parse(expr)
		assert.False(t, ok, "expected %q to be rejected", expr)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, text := range []string{">=1.0.0", "1.2.x", "1.x", "1.0.0-1.2.0", "~1.2.3", "^1.2.3"} {
		e, ok := Parse(text)
		require.True(t, ok)

		reparsed, ok := Parse(Format(e))
		require.True(t, ok)
		assert.Equal(t, e, reparsed)
	}
}
