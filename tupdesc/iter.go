package tupdesc

import (
	"iter"

	"PGTupDesc/access"
)

// All yields the attributes of h with their zero-based index. Each range
// starts over from the first attribute.
func (h *TupleDesc) All() iter.Seq2[int, *access.FormDataAttribute] {
	return func(yield func(int, *access.FormDataAttribute) bool) {
		for i := 0; ; i++ {
			a, ok := h.Attr(i)
			if !ok || !yield(i, a) {
				return
			}
		}
	}
}

// Attrs yields the attributes of h in order.
func (h *TupleDesc) Attrs() iter.Seq[*access.FormDataAttribute] {
	return func(yield func(*access.FormDataAttribute) bool) {
		for _, a := range h.All() {
			if !yield(a) {
				return
			}
		}
	}
}

// IntoAttrs consumes h: it yields a copy of each attribute and releases h
// when the range ends, early or not. h cannot be used after IntoAttrs is
// called, and the returned sequence yields nothing a second time. If it
// is never ranged over, h is released with its scope.
func (h *TupleDesc) IntoAttrs() iter.Seq[access.FormDataAttribute] {
	h.raw()
	h.consumed = true
	return func(yield func(access.FormDataAttribute) bool) {
		if h.released {
			return
		}
		defer h.release()
		for i := 0; ; i++ {
			a, ok := h.attr(h.deref(), i)
			if !ok || !yield(*a) {
				return
			}
		}
	}
}
