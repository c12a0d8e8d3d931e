package tupdesc

import (
	"PGTupDesc/access"
	"PGTupDesc/utils/typcache"
)

// Host is what the wrapper needs from the engine that owns descriptors.
type Host interface {
	// CopyConstr duplicates desc, constraints included, into the current
	// memory context. The copy is not reference counted.
	CopyConstr(desc *access.TupleDesc) *access.TupleDesc
	// Free returns an unpinned descriptor to its memory context.
	Free(desc *access.TupleDesc)
	IncrRefCount(desc *access.TupleDesc)
	DecrRefCount(desc *access.TupleDesc)
	// LookupRowtype resolves a row type to a pinned descriptor.
	LookupRowtype(typid access.OID, typmod int32) (*access.TupleDesc, error)
	// Detoast decompresses a composite datum and returns its header.
	Detoast(d access.Datum) (*access.HeapTupleHeader, error)
}

// RowContainer is anything that embeds a row descriptor and can say
// whether it is still alive, such as an open relation.
type RowContainer interface {
	TupleDesc() *access.TupleDesc
	IsValid() bool
}

// Backend binds Host to the in-process engine packages.
type Backend struct {
	Types *typcache.Cache
}

var _ Host = (*Backend)(nil)

func NewBackend(types *typcache.Cache) *Backend {
	return &Backend{Types: types}
}

func (b *Backend) CopyConstr(desc *access.TupleDesc) *access.TupleDesc {
	return access.CreateTupleDescCopyConstr(desc)
}

func (b *Backend) Free(desc *access.TupleDesc) {
	access.FreeTupleDesc(desc)
}

func (b *Backend) IncrRefCount(desc *access.TupleDesc) {
	access.IncrTupleDescRefCount(desc)
}

func (b *Backend) DecrRefCount(desc *access.TupleDesc) {
	access.DecrTupleDescRefCount(desc)
}

func (b *Backend) LookupRowtype(typid access.OID, typmod int32) (*access.TupleDesc, error) {
	return b.Types.LookupRowtypeTupdesc(typid, typmod)
}

func (b *Backend) Detoast(d access.Datum) (*access.HeapTupleHeader, error) {
	return access.DatumGetHeapTupleHeader(d)
}
