package relcache

import (
	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
)

// Relation is one open reference to a cached relation.
type Relation struct {
	entry *entry
	open  bool
}

func (r *Relation) ID() access.OID { return r.entry.id }
func (r *Relation) Name() string   { return r.entry.name }
func (r *Relation) Kind() Kind     { return r.entry.kind }

// IsValid reports whether the handle is still open.
func (r *Relation) IsValid() bool {
	return r != nil && r.open
}

// TupleDesc returns the relation's descriptor (RelationGetDescr). It is
// borrowed: valid while r is open, and not pinned.
func (r *Relation) TupleDesc() *access.TupleDesc {
	elog.Assert(r.IsValid(), "relation is not open")
	return r.entry.att
}

// Close releases this reference. Closing twice is an error.
func (r *Relation) Close() {
	if !r.open {
		elog.Ereport(elog.ERROR, elog.ErrCodeInternalError, "relation %q is already closed", r.entry.name)
	}
	r.open = false
	r.entry.refcnt--
}
