package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_NextIDIsIncreasing(t *testing.T) {
	gen, err := NewSnowflake(1)
	require.NoError(t, err)

	prev := gen.NextID()
	for i := 0; i < 1000; i++ {
		next := gen.NextID()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNewSnowflake_RejectsOutOfRangeNode(t *testing.T) {
	_, err := NewSnowflake(4096)
	assert.Error(t, err)
}
