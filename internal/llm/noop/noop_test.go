package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradegraph/internal/llm"
)

func TestCompleteIsDisabled(t *testing.T) {
	out, err := New().Complete(context.Background(), "sys", "prompt")
	assert.Empty(t, out)
	assert.ErrorIs(t, err, llm.ErrDisabled)
}
