package ring

// Ring is a fixed-capacity FIFO that overwrites its oldest element when full.
// Indices are monotonic and masked on access, so the capacity must be a power
// of two. Ring is not safe for concurrent use; owners serialise access.
type Ring[T any] struct {
	buf     []T
	mask    uint32
	rd      uint32 // consumer index (monotonic)
	wr      uint32 // producer index (monotonic)
	dropped uint32
}

// New allocates the backing array once; Push never allocates afterwards.
func New[T any](size int) *Ring[T] {
	if size < 2 || (size&(size-1)) != 0 {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }
func (r *Ring[T]) Len() int { return int(r.wr - r.rd) }

// Push appends v. When the ring is full the oldest element is evicted and
// Push reports true.
func (r *Ring[T]) Push(v T) (evicted bool) {
	if r.wr-r.rd == uint32(len(r.buf)) {
		var zero T
		r.buf[r.rd&r.mask] = zero
		r.rd++
		r.dropped++
		evicted = true
	}
	r.buf[r.wr&r.mask] = v
	r.wr++
	return evicted
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.rd == r.wr {
		return zero, false
	}
	i := r.rd & r.mask
	v := r.buf[i]
	r.buf[i] = zero
	r.rd++
	return v, true
}

// Peek returns the i-th oldest element without removing it.
func (r *Ring[T]) Peek(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.Len() {
		return zero, false
	}
	return r.buf[(r.rd+uint32(i))&r.mask], true
}

// Dropped counts evictions since creation.
func (r *Ring[T]) Dropped() uint32 { return r.dropped }

