package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected []string
	}{
		{
			name:     "identifiers and punctuation",
			code:     "def f(x):",
			expected: []string{"def", "f", "(", "x", ")", ":"},
		},
		{
			name:     "underscored identifier stays one token",
			code:     "user_id = 42",
			expected: []string{"user_id", "=", "42"},
		},
		{
			name:     "whitespace only",
			code:     "  \n\t ",
			expected: nil,
		},
		{
			name:     "operators split per rune",
			code:     "a+=b",
			expected: []string{"a", "+", "=", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.code))
		})
	}
}

func TestDiffMaskIdenticalInputs(t *testing.T) {
	code := "def read(path):\n    return open(path).read()\n"

	mask := DiffMask(code, code)

	require.Len(t, mask, len(Tokenize(code)))
	for i, v := range mask {
		assert.Equal(t, 0, v, "position %d should be unchanged", i)
	}
}

func TestDiffMaskLabelsFixedTokens(t *testing.T) {
	vulnerable := "x = a + b"
	fixed := "x = a + b # safe"

	mask := DiffMask(vulnerable, fixed)

	// Tokens: x = a + b # safe
	require.Len(t, mask, 7)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1}, mask)
}

func TestDiffMaskFlagsReplacedTokens(t *testing.T) {
	vulnerable := `cursor.execute("SELECT * FROM t WHERE id = " + uid)`
	fixed := `cursor.execute("SELECT * FROM t WHERE id = ?", (uid,))`

	mask := DiffMask(vulnerable, fixed)

	require.Len(t, mask, len(Tokenize(fixed)))
	var flagged int
	for _, v := range mask {
		require.Contains(t, []int{0, 1}, v)
		flagged += v
	}
	assert.Greater(t, flagged, 0, "the parameterized query tokens must be flagged")
	assert.Less(t, flagged, len(mask), "the shared query tokens must stay unflagged")
}

func TestDiffMaskDeterministic(t *testing.T) {
	vulnerable := "subprocess.call(cmd, shell=True)"
	fixed := "subprocess.call(shlex.split(cmd))"

	first := DiffMask(vulnerable, fixed)
	second := DiffMask(vulnerable, fixed)

	assert.Equal(t, first, second)
}
