package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquals(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"strings", "ok", "ok", true},
		{"string mismatch", "ok", "fail", false},
		{"float vs int", float64(3), 3, true},
		{"int vs float", 3, float64(3), true},
		{"float mismatch", 3.5, 3, false},
		{"number vs string", float64(3), "3", false},
		{"bools", true, true, true},
		{"nils", nil, nil, true},
		{"maps", map[string]any{"a": "b"}, map[string]any{"a": "b"}, true},
		{"slices", []any{"a", float64(1)}, []any{"a", float64(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equals(tt.actual, tt.expected))
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		actual  any
		pattern string
		want    bool
	}{
		{"substring hit", "pipeline finished cleanly", "finished", true},
		{"substring miss", "pipeline finished", "crashed", false},
		{"glob hit", "deploy-prod-42", "glob:deploy-*-42", true},
		{"glob miss", "deploy-prod-42", "glob:release-*", false},
		{"regex hit", "TCK-4711", `re:^TCK-\d+$`, true},
		{"regex miss", "TCK-abc", `re:^TCK-\d+$`, false},
		{"number as text", float64(42), "re:^42$", true},
		{"integral float stringified", float64(3), "3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchPattern(tt.actual, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("invalid regex", func(t *testing.T) {
		_, err := MatchPattern("x", "re:[bad")
		require.Error(t, err)
	})
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "text", Stringify("text"))
	assert.Equal(t, "3", Stringify(float64(3)))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "true", Stringify(true))
}
