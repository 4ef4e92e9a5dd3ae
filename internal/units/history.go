package units

// History is a bounded, insertion-ordered buffer. Pushing past the limit
// evicts the oldest values.
type History[T any] struct {
	max    int
	values []T
}

// NewHistory returns an empty history holding at most max values.
func NewHistory[T any](max int) *History[T] {
	if max < 1 {
		max = 1
	}
	return &History[T]{max: max, values: make([]T, 0, max)}
}

// Push appends v and trims from the front until the length fits the limit.
func (h *History[T]) Push(v T) {
	h.values = append(h.values, v)
	if over := len(h.values) - h.max; over > 0 {
		h.values = append(h.values[:0], h.values[over:]...)
	}
}

// Resize changes the limit, dropping the oldest values if needed.
func (h *History[T]) Resize(max int) {
	if max < 1 {
		max = 1
	}
	h.max = max
	if over := len(h.values) - h.max; over > 0 {
		h.values = append(h.values[:0], h.values[over:]...)
	}
}

// Len reports the number of stored values.
func (h *History[T]) Len() int { return len(h.values) }

// Max reports the configured limit.
func (h *History[T]) Max() int { return h.max }

// Values returns a copy, oldest first.
func (h *History[T]) Values() []T {
	out := make([]T, len(h.values))
	copy(out, h.values)
	return out
}

// Last returns the newest value and whether one exists.
func (h *History[T]) Last() (T, bool) {
	var zero T
	if len(h.values) == 0 {
		return zero, false
	}
	return h.values[len(h.values)-1], true
}
