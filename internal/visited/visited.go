// Package visited tracks visited graph nodes during a single search pass.
package visited

// Set tracks visited nodes using a bitset and a dirty list for fast reset.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a new visited set sized for the given number of nodes.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a node as visited.
func (v *Set) Visit(id uint32) {
	wordIdx := int(id >> 6)
	bitMask := uint64(1) << (id & 63)

	if wordIdx >= len(v.bits) {
		v.grow(wordIdx + 1)
	}

	if v.bits[wordIdx]&bitMask == 0 {
		v.bits[wordIdx] |= bitMask
		v.dirty = append(v.dirty, id)
	}
}

// Visited returns true if the node has been visited.
func (v *Set) Visited(id uint32) bool {
	wordIdx := int(id >> 6)
	if wordIdx >= len(v.bits) {
		return false
	}
	return v.bits[wordIdx]&(uint64(1)<<(id&63)) != 0
}

// Reset clears the visited status for all nodes visited since the last reset.
func (v *Set) Reset() {
	for _, id := range v.dirty {
		v.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	v.dirty = v.dirty[:0]
}

func (v *Set) grow(newLen int) {
	newCap := len(v.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}
	newBits := make([]uint64, newCap)
	copy(newBits, v.bits)
	v.bits = newBits
}
