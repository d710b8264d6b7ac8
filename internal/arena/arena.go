// Package arena implements a block-growing free-list object pool: the
// memory substrate the order book's intrusive resting-order lists are
// carved from. Access is single-threaded, matching the order book's
// single-writer-thread contract (see internal/orderbook).
package arena

// Arena allocates values of T from contiguous blocks and recycles freed
// ones LIFO. Blocks live for the arena's lifetime; a pointer returned by
// Allocate stays valid (though logically "dead" once Free'd) until the
// whole arena is dropped.
type Arena[T any] struct {
	blockSize int
	blocks    [][]T
	free      []*T
}

// New creates an arena that grows by allocating blockSize elements at a
// time whenever the free list runs dry.
func New[T any](blockSize int) *Arena[T] {
	if blockSize < 1 {
		blockSize = 1
	}
	return &Arena[T]{blockSize: blockSize}
}

// Allocate pops a node off the free list (growing the arena by one block
// first if none are available), zeroes it, and returns its address.
func (a *Arena[T]) Allocate() *T {
	if len(a.free) == 0 {
		a.grow()
	}
	n := len(a.free) - 1
	p := a.free[n]
	a.free[n] = nil
	a.free = a.free[:n]
	var zero T
	*p = zero
	return p
}

// Free returns p to the pool for reuse. The caller must not use p again
// after this call; a subsequent Allocate may hand the same address back out.
func (a *Arena[T]) Free(p *T) {
	a.free = append(a.free, p)
}

// grow carves a new block of blockSize elements and chains every element
// into the free list.
func (a *Arena[T]) grow() {
	block := make([]T, a.blockSize)
	a.blocks = append(a.blocks, block)
	for i := range block {
		a.free = append(a.free, &block[i])
	}
}

// Len returns the number of nodes currently available for reuse.
func (a *Arena[T]) Len() int {
	return len(a.free)
}

// Blocks returns the number of contiguous blocks the arena has allocated.
func (a *Arena[T]) Blocks() int {
	return len(a.blocks)
}
