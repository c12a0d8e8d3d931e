package tupdesc

import (
	"fmt"

	"go.uber.org/zap"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/relcache"
)

// TupleDesc is a handle on a host row descriptor. It is created by a
// Scope and released by it; see the package documentation.
type TupleDesc struct {
	scope      *Scope
	desc       *access.TupleDesc
	provenance Provenance
	parent     RowContainer          // BorrowedFromParent only
	data       *access.HeapTupleData // CompositeDerived only
	natts      int

	released bool
	consumed bool
}

// deref returns the host descriptor, panicking if the handle was released
// or its parent is gone.
func (h *TupleDesc) deref() *access.TupleDesc {
	elog.Assert(!h.released, "tuple descriptor handle used after release")
	if h.provenance == BorrowedFromParent {
		elog.Assert(h.parent.IsValid(), "tuple descriptor handle outlived its parent")
	}
	return h.desc
}

func (h *TupleDesc) raw() *access.TupleDesc {
	elog.Assert(!h.consumed, "tuple descriptor handle used after IntoAttrs")
	return h.deref()
}

// Raw returns the host descriptor. It stays valid only while h does and
// must not be freed or unpinned by the caller.
func (h *TupleDesc) Raw() *access.TupleDesc {
	return h.raw()
}

func (h *TupleDesc) Provenance() Provenance {
	return h.provenance
}

// Parent returns the container h borrows from, or nil.
func (h *TupleDesc) Parent() RowContainer {
	h.raw()
	return h.parent
}

// Relation returns the relation h borrows from, if it was built from one.
func (h *TupleDesc) Relation() (*relcache.Relation, bool) {
	h.raw()
	rel, ok := h.parent.(*relcache.Relation)
	return rel, ok
}

// TypeID returns the row type, RECORD for anonymous rows.
func (h *TupleDesc) TypeID() access.OID {
	return h.raw().TypeID
}

// TypeMod returns the row type modifier, -1 unless the row type is a
// registered anonymous record.
func (h *TupleDesc) TypeMod() int32 {
	return h.raw().TypeModifier
}

// Len returns the attribute count captured when h was created.
func (h *TupleDesc) Len() int {
	h.raw()
	return h.natts
}

func (h *TupleDesc) IsEmpty() bool {
	return h.Len() == 0
}

// Attr returns attribute i, counting from zero, or false when i is out of
// range.
func (h *TupleDesc) Attr(i int) (*access.FormDataAttribute, bool) {
	return h.attr(h.raw(), i)
}

func (h *TupleDesc) attr(desc *access.TupleDesc, i int) (*access.FormDataAttribute, bool) {
	if i < 0 || i >= h.natts || i >= len(desc.Attrs) {
		return nil, false
	}
	return desc.TupleDescAttr(i), true
}

func (h *TupleDesc) String() string {
	if h.released {
		return fmt.Sprintf("tupdesc %s (released)", h.provenance)
	}
	return fmt.Sprintf("tupdesc %s %s", h.provenance, h.desc)
}

// release runs the cleanup h's provenance calls for. Only the first call
// does anything.
func (h *TupleDesc) release() {
	if h.released {
		return
	}
	h.released = true
	host, typid := h.scope.host, h.desc.TypeID
	switch h.provenance {
	case ReferenceCounted:
		if h.desc.RefCount >= 0 {
			host.DecrRefCount(h.desc)
		}
	case CompositeDerived:
		if h.desc.RefCount >= 0 {
			host.DecrRefCount(h.desc)
		}
		h.data = nil
	case OwnedCopy:
		host.Free(h.desc)
	case BorrowedFromParent:
	default:
		elog.Assert(false, "tuple descriptor handle has no provenance")
	}
	h.scope.log.Debug("released tuple descriptor",
		zap.Stringer("provenance", h.provenance),
		zap.Uint32("typid", uint32(typid)))
	h.desc = nil
	h.parent = nil
}
