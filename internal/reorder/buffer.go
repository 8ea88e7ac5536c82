// Package reorder implements the parallel-compute, sequential-commit
// buffer: completions arrive keyed by index in arbitrary order and are
// released strictly in index order.
package reorder

import (
	"errors"
	"fmt"
)

var (
	ErrStaleIndex     = errors.New("reorder: index already released")
	ErrDuplicateIndex = errors.New("reorder: index already pending")
)

// Buffer holds out-of-order completions until the next contiguous
// index is available. Not safe for concurrent use; a single
// coordinator is expected to own it.
type Buffer[T any] struct {
	next    uint64
	pending map[uint64]T
}

func New[T any]() *Buffer[T] {
	return &Buffer[T]{
		pending: make(map[uint64]T),
	}
}

// Push stores a completion. Indices below the release cursor and
// duplicates are rejected.
func (b *Buffer[T]) Push(index uint64, value T) error {
	if index < b.next {
		return fmt.Errorf("%w: %d < %d", ErrStaleIndex, index, b.next)
	}
	if _, ok := b.pending[index]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateIndex, index)
	}
	b.pending[index] = value
	return nil
}

// Pop releases the next contiguous value, if present. Callers drain
// pops in a loop after each Push; the first gap stops the drain.
func (b *Buffer[T]) Pop() (T, bool) {
	value, ok := b.pending[b.next]
	if !ok {
		var zero T
		return zero, false
	}
	delete(b.pending, b.next)
	b.next++
	return value, true
}

// NextIndex is the index the next Pop will release.
func (b *Buffer[T]) NextIndex() uint64 {
	return b.next
}

// Pending is the number of buffered out-of-order completions.
func (b *Buffer[T]) Pending() int {
	return len(b.pending)
}
