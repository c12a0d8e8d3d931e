// Package relcache keeps one entry per table or view, each holding the
// relation's row descriptor. Opening a relation returns a Relation handle
// that stays valid until it is closed; the embedded descriptor may be
// borrowed for exactly that long.
package relcache

import (
	"go.uber.org/zap"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

// Kind is pg_class.relkind.
type Kind byte

const (
	KindTable Kind = 'r'
	KindView  Kind = 'v'

	// KindComposite marks a standalone composite type in the catalog. Such
	// types are registered with the type cache, never opened as relations.
	KindComposite Kind = 'c'
)

func (k Kind) String() string {
	return string(rune(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte{byte(k)}, nil
}

type entry struct {
	id     access.OID
	name   string
	kind   Kind
	att    *access.TupleDesc
	refcnt int
}

type Cache struct {
	mcxt   *mmgr.Context
	byID   map[access.OID]*entry
	byName map[string]*entry
	log    *zap.Logger
}

// New creates a relation cache whose descriptors live in a child of parent.
func New(parent *mmgr.Context) *Cache {
	return &Cache{
		mcxt:   mmgr.NewContext(parent, "CacheMemoryContext"),
		byID:   make(map[access.OID]*entry),
		byName: make(map[string]*entry),
		log:    elog.Logger().Named("relcache"),
	}
}

func (c *Cache) Context() *mmgr.Context {
	return c.mcxt
}

// Define adds a relation built from a copy of desc. The cached descriptor
// is reference counted and pinned by the cache.
func (c *Cache) Define(relid access.OID, name string, kind Kind, desc *access.TupleDesc) {
	if _, ok := c.byID[relid]; ok {
		elog.Ereport(elog.ERROR, elog.ErrCodeDuplicateObject, "relation with OID %d already exists", uint32(relid))
	}
	if _, ok := c.byName[name]; ok {
		elog.Ereport(elog.ERROR, elog.ErrCodeDuplicateObject, "relation %q already exists", name)
	}

	att := c.copyIn(desc)
	for i := range att.Attrs {
		att.Attrs[i].RelID = relid
	}
	att.RefCount = 0
	access.IncrTupleDescRefCount(att)

	e := &entry{id: relid, name: name, kind: kind, att: att}
	c.byID[relid] = e
	c.byName[name] = e
	c.log.Debug("relation defined", zap.String("relation", name), zap.Uint32("relid", uint32(relid)), zap.Int("natts", att.NAttr))
}

func (c *Cache) copyIn(desc *access.TupleDesc) *access.TupleDesc {
	old := mmgr.SwitchTo(c.mcxt)
	defer mmgr.SwitchTo(old)
	return access.CreateTupleDescCopyConstr(desc)
}

// Open returns a new handle on relation relid.
func (c *Cache) Open(relid access.OID) (*Relation, error) {
	e, ok := c.byID[relid]
	if !ok {
		return nil, elog.Errorf(elog.ErrCodeUndefinedTable, "could not open relation with OID %d", uint32(relid))
	}
	return c.open(e), nil
}

// OpenByName returns a new handle on the named relation.
func (c *Cache) OpenByName(name string) (*Relation, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, elog.Errorf(elog.ErrCodeUndefinedTable, "relation %q does not exist", name)
	}
	return c.open(e), nil
}

func (c *Cache) open(e *entry) *Relation {
	e.refcnt++
	return &Relation{entry: e, open: true}
}

// Drop removes a relation that nobody has open and releases the cache's
// pin on its descriptor. Descriptors still pinned elsewhere survive.
func (c *Cache) Drop(relid access.OID) error {
	e, ok := c.byID[relid]
	if !ok {
		return elog.Errorf(elog.ErrCodeUndefinedTable, "relation with OID %d does not exist", uint32(relid))
	}
	if e.refcnt > 0 {
		return elog.Errorf(elog.ErrCodeObjectInUse, "relation %q is still open", e.name).
			WithDetail("%d open references", e.refcnt)
	}
	delete(c.byID, relid)
	delete(c.byName, e.name)
	access.DecrTupleDescRefCount(e.att)
	c.log.Debug("relation dropped", zap.String("relation", e.name))
	return nil
}

// Names lists the defined relations in no particular order.
func (c *Cache) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	return names
}
