package words

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DedupesAndTrims(t *testing.T) {
	c, err := New([]string{" apple ", "Apple", "pear", "", "plum", "pear"})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Contains("APPLE"))
}

func TestNew_TooSmall(t *testing.T) {
	_, err := New([]string{"a", "b", "A"})
	require.ErrorIs(t, err, ErrTooSmall)
}

func TestDefault_HasNoDuplicates(t *testing.T) {
	c := Default()
	seen := map[string]bool{}
	for _, w := range c.words {
		k := strings.ToLower(w)
		assert.False(t, seen[k], "duplicate %q", w)
		seen[k] = true
	}
	assert.GreaterOrEqual(t, c.Len(), MinSize)
}

func TestSample_DistinctWithoutReplacement(t *testing.T) {
	c, err := New([]string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		got, err := c.Sample(3, rng)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.NotEqual(t, got[0], got[1])
		assert.NotEqual(t, got[0], got[2])
		assert.NotEqual(t, got[1], got[2])
	}

	_, err = c.Sample(6, rng)
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestLoad_SkipsCommentsAndBlanks(t *testing.T) {
	src := "# drawable words\napple\n\n banana \ncarrot\n"
	c, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Contains("banana"))
}
