package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("MinOrder", func(t *testing.T) {
		pq := NewMin(4)
		pq.Push(Item{Node: 1, Distance: 3})
		pq.Push(Item{Node: 2, Distance: 1})
		pq.Push(Item{Node: 3, Distance: 2})

		var order []uint32
		for pq.Len() > 0 {
			item, ok := pq.Pop()
			require.True(t, ok)
			order = append(order, item.Node)
		}
		assert.Equal(t, []uint32{2, 3, 1}, order)
	})

	t.Run("MaxTop", func(t *testing.T) {
		pq := NewMax(4)
		pq.Push(Item{Node: 1, Distance: 3})
		pq.Push(Item{Node: 2, Distance: 5})
		pq.Push(Item{Node: 3, Distance: 4})

		top, ok := pq.Top()
		require.True(t, ok)
		assert.Equal(t, uint32(2), top.Node)
		assert.Equal(t, 3, pq.Len())
	})

	t.Run("Empty", func(t *testing.T) {
		pq := NewMin(0)
		_, ok := pq.Pop()
		assert.False(t, ok)
		_, ok = pq.Top()
		assert.False(t, ok)
	})
}
