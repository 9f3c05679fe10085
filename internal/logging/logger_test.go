package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"text", "json"} {
		require.NotNil(t, NewLogger(true, format), format)
	}
}

func TestDefaultLogger_IsShared(t *testing.T) {
	t.Parallel()

	assert.Same(t, DefaultLogger(), DefaultLogger())
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Same(t, DefaultLogger(), FromContext(ctx))

	custom := NewLogger(false, "json")
	ctx = WithLogger(ctx, custom)
	assert.Same(t, custom, FromContext(ctx))
}
