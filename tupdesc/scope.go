package tupdesc

import (
	"go.uber.org/zap"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/relcache"
)

// Scope owns the handles created through it and releases them, most
// recent first, when it is closed.
type Scope struct {
	host    Host
	handles []*TupleDesc
	closed  bool
	log     *zap.Logger
}

func NewScope(host Host) *Scope {
	elog.Assert(host != nil, "scope needs a host")
	return &Scope{host: host, log: elog.Logger().Named("tupdesc")}
}

// Run creates a scope, calls fn with it and closes the scope however fn
// exits, including by panic.
func Run(host Host, fn func(s *Scope) error) error {
	s := NewScope(host)
	defer s.Close()
	return fn(s)
}

// Close releases every handle the scope still holds. A release that
// raises does not stop the others; once all have run, the first failure
// is raised again. Closing twice is a no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	var first any
	for i := len(s.handles) - 1; i >= 0; i-- {
		if r := s.releaseOne(s.handles[i]); r != nil && first == nil {
			first = r
		}
	}
	s.log.Debug("scope closed", zap.Int("handles", len(s.handles)))
	s.handles = nil
	if first != nil {
		panic(first)
	}
}

func (s *Scope) releaseOne(h *TupleDesc) (failure any) {
	defer func() {
		if failure = recover(); failure != nil {
			s.log.Warn("tuple descriptor release failed",
				zap.Stringer("provenance", h.provenance), zap.Any("error", failure))
		}
	}()
	h.release()
	return nil
}

// Len returns the number of handles created in s.
func (s *Scope) Len() int {
	return len(s.handles)
}

func (s *Scope) track(h *TupleDesc) *TupleDesc {
	elog.Assert(!s.closed, "scope is already closed")
	h.scope = s
	h.natts = h.desc.NAttr
	s.handles = append(s.handles, h)
	s.log.Debug("acquired tuple descriptor",
		zap.Stringer("provenance", h.provenance),
		zap.Uint32("typid", uint32(h.desc.TypeID)),
		zap.Int32("typmod", h.desc.TypeModifier),
		zap.Int("natts", h.natts))
	return h
}

// FromPgUnchecked wraps a descriptor the host already pinned for the
// caller, such as the result of a row type lookup. The pin is dropped on
// release. A descriptor with RefCount -1 is context owned and is left
// alone.
func (s *Scope) FromPgUnchecked(desc *access.TupleDesc) *TupleDesc {
	return s.track(&TupleDesc{desc: desc, provenance: ReferenceCounted})
}

// FromPgCopyUnchecked copies desc, constraints included, into the current
// memory context. The copy is freed on release and desc is not touched
// again.
func (s *Scope) FromPgCopyUnchecked(desc *access.TupleDesc) *TupleDesc {
	return s.track(&TupleDesc{desc: s.host.CopyConstr(desc), provenance: OwnedCopy})
}

// FromPgIsCopyUnchecked takes ownership of desc, which must already be a
// private, unpinned copy. It is freed on release.
func (s *Scope) FromPgIsCopyUnchecked(desc *access.TupleDesc) *TupleDesc {
	return s.track(&TupleDesc{desc: desc, provenance: OwnedCopy})
}

// FromParent borrows the descriptor embedded in a live container. The
// handle must not outlive the container; using it after the container
// is invalidated panics.
func (s *Scope) FromParent(parent RowContainer) *TupleDesc {
	elog.Assert(parent != nil && parent.IsValid(), "cannot borrow a descriptor from a closed container")
	return s.track(&TupleDesc{desc: parent.TupleDesc(), provenance: BorrowedFromParent, parent: parent})
}

// FromRelation borrows an open relation's descriptor.
func (s *Scope) FromRelation(rel *relcache.Relation) *TupleDesc {
	return s.FromParent(rel)
}

// FromCompositeUnchecked decodes a composite datum, resolves its row type
// through the host and keeps the decoded row for AttrValue. d must be a
// composite value; a malformed datum or an unknown row type is reported
// as an error and nothing is acquired.
func (s *Scope) FromCompositeUnchecked(d access.Datum) (*TupleDesc, error) {
	hdr, err := s.host.Detoast(d)
	if err != nil {
		return nil, err
	}
	typid := access.HeapTupleHeaderGetTypeID(hdr)
	typmod := access.HeapTupleHeaderGetTypMod(hdr)
	desc, err := s.host.LookupRowtype(typid, typmod)
	if err != nil {
		return nil, err
	}
	data := &access.HeapTupleData{
		Len:      access.HeapTupleHeaderGetDatumLength(hdr),
		TableOID: access.InvalidOID,
		Data:     hdr,
	}
	return s.track(&TupleDesc{desc: desc, provenance: CompositeDerived, data: data}), nil
}

// Rederive returns a second handle on h's descriptor, acquired the way
// h's provenance requires: pinned again, copied again, or borrowed again
// from the same parent. The new handle belongs to s.
func (s *Scope) Rederive(h *TupleDesc) *TupleDesc {
	desc := h.raw()
	switch h.provenance {
	case ReferenceCounted, CompositeDerived:
		if desc.RefCount >= 0 {
			s.host.IncrRefCount(desc)
		}
		return s.track(&TupleDesc{desc: desc, provenance: h.provenance, data: h.data})
	case OwnedCopy:
		return s.FromPgCopyUnchecked(desc)
	case BorrowedFromParent:
		return s.FromParent(h.parent)
	}
	panic(elog.Errorf(elog.ErrCodeInternalError, "unknown provenance %s", h.provenance))
}
