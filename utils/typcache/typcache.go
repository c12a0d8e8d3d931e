// Package typcache caches the row descriptors of composite types.
//
// Named composite types are registered under their type OID. Anonymous
// record types are registered on demand and identified by RECORD plus a
// typmod that indexes the registry. Every cached descriptor is reference
// counted and holds one pin owned by the cache itself; lookups add a pin
// that the caller must drop with DecrTupleDescRefCount.
package typcache

import (
	"encoding/binary"

	"github.com/lib/pq/oid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

type Cache struct {
	mcxt    *mmgr.Context
	types   map[access.OID]*access.TupleDesc
	records []*access.TupleDesc
	byHash  map[[32]byte][]int32
	log     *zap.Logger
}

// New creates a cache whose descriptors live in a child of parent.
func New(parent *mmgr.Context) *Cache {
	return &Cache{
		mcxt:   mmgr.NewContext(parent, "TypCacheContext"),
		types:  make(map[access.OID]*access.TupleDesc),
		byHash: make(map[[32]byte][]int32),
		log:    elog.Logger().Named("typcache"),
	}
}

// Context returns the memory context holding cached descriptors.
func (c *Cache) Context() *mmgr.Context {
	return c.mcxt
}

func (c *Cache) store(desc *access.TupleDesc, typid access.OID, typmod int32) *access.TupleDesc {
	old := mmgr.SwitchTo(c.mcxt)
	defer mmgr.SwitchTo(old)
	cached := access.CreateTupleDescCopyConstr(desc)
	cached.TypeID = typid
	cached.TypeModifier = typmod
	cached.RefCount = 0
	access.IncrTupleDescRefCount(cached)
	return cached
}

// RegisterComposite caches a copy of desc as the row type typid.
func (c *Cache) RegisterComposite(typid access.OID, desc *access.TupleDesc) {
	if typid == access.InvalidOID || typid == oid.T_record {
		elog.Ereport(elog.ERROR, elog.ErrCodeInvalidParameter, "type %d is not a named composite type", uint32(typid))
	}
	if _, ok := c.types[typid]; ok {
		elog.Ereport(elog.ERROR, elog.ErrCodeDuplicateObject, "composite type %d already registered", uint32(typid))
	}
	c.types[typid] = c.store(desc, typid, -1)
	c.log.Debug("registered composite type", zap.Uint32("typid", uint32(typid)), zap.Int("natts", desc.NAttr))
}

// AssignRecordTypmod registers desc as an anonymous record type, reusing
// the typmod of an identical earlier registration, and stamps desc with
// RECORD and that typmod.
func (c *Cache) AssignRecordTypmod(desc *access.TupleDesc) int32 {
	key := hashRowType(desc)
	for _, typmod := range c.byHash[key] {
		if access.EqualRowTypes(c.records[typmod], desc) {
			desc.TypeID, desc.TypeModifier = oid.T_record, typmod
			return typmod
		}
	}
	typmod := int32(len(c.records))
	c.records = append(c.records, c.store(desc, oid.T_record, typmod))
	c.byHash[key] = append(c.byHash[key], typmod)
	desc.TypeID, desc.TypeModifier = oid.T_record, typmod
	c.log.Debug("assigned record typmod", zap.Int32("typmod", typmod), zap.Int("natts", desc.NAttr))
	return typmod
}

func (c *Cache) lookup(typid access.OID, typmod int32) (*access.TupleDesc, error) {
	if typid != oid.T_record {
		desc, ok := c.types[typid]
		if !ok {
			return nil, elog.Errorf(elog.ErrCodeUndefinedObject, "type %d is not composite", uint32(typid))
		}
		return desc, nil
	}
	if typmod < 0 || int(typmod) >= len(c.records) {
		return nil, elog.Errorf(elog.ErrCodeUndefinedObject, "record type has not been registered").
			WithDetail("typmod %d", typmod)
	}
	return c.records[typmod], nil
}

// LookupRowtypeTupdesc returns the cached descriptor for a row type with
// an extra pin. The caller must release it with DecrTupleDescRefCount.
func (c *Cache) LookupRowtypeTupdesc(typid access.OID, typmod int32) (*access.TupleDesc, error) {
	desc, err := c.lookup(typid, typmod)
	if err != nil {
		return nil, err
	}
	access.IncrTupleDescRefCount(desc)
	return desc, nil
}

// LookupRowtypeTupdescCopy returns an unpinned copy of the row type's
// descriptor in the current memory context, to be freed with FreeTupleDesc.
func (c *Cache) LookupRowtypeTupdescCopy(typid access.OID, typmod int32) (*access.TupleDesc, error) {
	desc, err := c.lookup(typid, typmod)
	if err != nil {
		return nil, err
	}
	return access.CreateTupleDescCopyConstr(desc), nil
}

// Invalidate drops the cache's own pin on a named composite type. The
// descriptor stays valid until every outstanding lookup pin is released.
func (c *Cache) Invalidate(typid access.OID) {
	desc, ok := c.types[typid]
	if !ok {
		return
	}
	delete(c.types, typid)
	access.DecrTupleDescRefCount(desc)
	c.log.Debug("invalidated composite type", zap.Uint32("typid", uint32(typid)), zap.Int("remaining_pins", desc.RefCount))
}

// hashRowType keys the record registry on the physical row layout.
func hashRowType(desc *access.TupleDesc) [32]byte {
	h := blake3.New()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(desc.NAttr))
	_, _ = h.Write(buf[:])
	for i := range desc.Attrs {
		a := &desc.Attrs[i]
		_, _ = h.Write([]byte(a.Name))
		_, _ = h.Write([]byte{0})
		binary.BigEndian.PutUint32(buf[:], uint32(a.TypeID))
		_, _ = h.Write(buf[:])
		binary.BigEndian.PutUint32(buf[:], uint32(a.TypeMod))
		_, _ = h.Write(buf[:])
		if a.IsDropped {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
