package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2(t *testing.T) {
	t.Run("Zero", func(t *testing.T) {
		a := []float32{1, 2, 3}
		assert.Equal(t, float32(0), SquaredL2(a, a))
	})

	t.Run("Known", func(t *testing.T) {
		a := []float32{0, 0, 0}
		b := []float32{1, 2, 2}
		assert.Equal(t, float32(9), SquaredL2(a, b))
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := []float32{1, -4, 2.5}
		b := []float32{-3, 0.5, 7}
		assert.Equal(t, SquaredL2(a, b), SquaredL2(b, a))
	})
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	assert.Equal(t, float32(32), Dot(a, b))
}

func TestNormalizeL2(t *testing.T) {
	t.Run("Copy", func(t *testing.T) {
		v := []float32{3, 4}
		n, ok := NormalizeL2Copy(v)
		require.True(t, ok)
		assert.InDelta(t, 0.6, n[0], 1e-6)
		assert.InDelta(t, 0.8, n[1], 1e-6)
		// Input untouched.
		assert.Equal(t, float32(3), v[0])
	})

	t.Run("ZeroVector", func(t *testing.T) {
		_, ok := NormalizeL2Copy([]float32{0, 0})
		assert.False(t, ok)
	})
}
