package pool

// Resettable is a constraint for types that have a Reset() method.
type Resettable interface {
	Reset()
}

// Poolable is a constraint for types that can be pooled (must be resettable and comparable).
type Poolable interface {
	Resettable
	comparable
}

// Pool is a bounded free list of reusable objects. Unlike sync.Pool it
// never drops items on GC, which keeps hot response buffers warm.
type Pool[T Poolable] struct {
	items   chan T
	newItem func() T
}

// New creates a Pool holding at most capacity idle objects.
// newItem builds an object when the pool is empty; it may be nil,
// in which case Get returns the zero value of T.
func New[T Poolable](capacity int, newItem func() T) *Pool[T] {
	return &Pool[T]{
		items:   make(chan T, capacity),
		newItem: newItem,
	}
}

// Get returns an idle object or a freshly built one.
func (p *Pool[T]) Get() T {
	select {
	case item := <-p.items:
		return item
	default:
		if p.newItem != nil {
			return p.newItem()
		}
		var zero T
		return zero
	}
}

// Put resets item and keeps it for reuse. Zero values are discarded,
// as are items that do not fit.
func (p *Pool[T]) Put(item T) {
	var zero T
	if item == zero {
		return
	}
	item.Reset()

	select {
	case p.items <- item:
	default:
	}
}
