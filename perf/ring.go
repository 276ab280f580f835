package perf

// ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the
// oldest element. The ring is not thread-safe; callers must handle
// synchronization.
type ring[T any] struct {
	buf   []T
	start int // index of the oldest element
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// Len returns the number of stored elements.
func (r *ring[T]) Len() int { return r.n }

// Cap returns the capacity.
func (r *ring[T]) Cap() int { return len(r.buf) }

// Push appends v, evicting the oldest element when full.
// It reports whether an element was evicted.
func (r *ring[T]) Push(v T) bool {
	if len(r.buf) == 0 {
		return false
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// Last returns the newest element.
func (r *ring[T]) Last() (T, bool) {
	if r.n == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

// Each calls fn for every element from oldest to newest.
func (r *ring[T]) Each(fn func(T)) {
	for i := range r.n {
		fn(r.buf[(r.start+i)%len(r.buf)])
	}
}

// Slice returns a copy of the elements from oldest to newest.
func (r *ring[T]) Slice() []T {
	out := make([]T, 0, r.n)
	r.Each(func(v T) { out = append(out, v) })
	return out
}

// Clear removes every element.
func (r *ring[T]) Clear() {
	clear(r.buf)
	r.start = 0
	r.n = 0
}
