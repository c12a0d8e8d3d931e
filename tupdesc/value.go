package tupdesc

import "PGTupDesc/utils/adt"

// AttrValue decodes attribute i (zero-based) of the row a composite
// handle was built from. It returns false when h carries no row, when i
// is out of range, or when the value is null or cannot be read as typ.
func AttrValue[T any](h *TupleDesc, i int, typ adt.Type[T]) (T, bool) {
	desc := h.raw()
	if h.data == nil || i < 0 || i >= h.natts {
		var zero T
		return zero, false
	}
	return adt.GetAttr(h.data, i+1, desc, typ)
}
