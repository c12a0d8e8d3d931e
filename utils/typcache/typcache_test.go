package typcache

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c := New(nil)
	t.Cleanup(c.Context().Delete)
	return c
}

func pairDesc(names ...string) *access.TupleDesc {
	desc := access.CreateTemplateTupleDesc(len(names))
	for i, n := range names {
		access.TupleDescInitEntry(desc, access.AttrNumber(i+1), n, oid.T_text, -1)
	}
	return desc
}

func TestRegisterAndLookup(t *testing.T) {
	c := newCache(t)
	src := pairDesc("a", "b")
	c.RegisterComposite(16400, src)
	access.FreeTupleDesc(src)

	desc, err := c.LookupRowtypeTupdesc(16400, -1)
	require.NoError(t, err)
	assert.Equal(t, access.OID(16400), desc.TypeID)
	assert.Equal(t, int32(-1), desc.TypeModifier)
	assert.Equal(t, 2, desc.RefCount, "cache pin plus lookup pin")
	assert.True(t, c.Context().Owns(desc))

	access.DecrTupleDescRefCount(desc)
	assert.Equal(t, 1, desc.RefCount)
}

func TestRegisterRejectsDuplicatesAndRecord(t *testing.T) {
	c := newCache(t)
	src := pairDesc("a")
	c.RegisterComposite(16400, src)

	err := elog.Try(func() { c.RegisterComposite(16400, src) })
	assert.Equal(t, elog.ErrCodeDuplicateObject, elog.CodeOf(err))

	err = elog.Try(func() { c.RegisterComposite(oid.T_record, src) })
	assert.Equal(t, elog.ErrCodeInvalidParameter, elog.CodeOf(err))
}

func TestLookupUnknown(t *testing.T) {
	c := newCache(t)
	_, err := c.LookupRowtypeTupdesc(99999, -1)
	assert.Equal(t, elog.ErrCodeUndefinedObject, elog.CodeOf(err))

	_, err = c.LookupRowtypeTupdesc(oid.T_record, 3)
	assert.Equal(t, elog.ErrCodeUndefinedObject, elog.CodeOf(err))
}

func TestLookupCopy(t *testing.T) {
	c := newCache(t)
	c.RegisterComposite(16400, pairDesc("a", "b"))

	work := mmgr.NewContext(nil, "work")
	defer work.Delete()
	old := mmgr.SwitchTo(work)
	cp, err := c.LookupRowtypeTupdescCopy(16400, -1)
	mmgr.SwitchTo(old)
	require.NoError(t, err)

	assert.Equal(t, -1, cp.RefCount)
	assert.True(t, work.Owns(cp))
	cached, _ := c.lookup(16400, -1)
	assert.Equal(t, 1, cached.RefCount, "copy does not pin")
	assert.True(t, access.EqualTupleDescs(cached, cp))
}

func TestAssignRecordTypmod(t *testing.T) {
	c := newCache(t)
	first := pairDesc("x", "y")
	same := pairDesc("x", "y")
	other := pairDesc("x", "z")

	m1 := c.AssignRecordTypmod(first)
	m2 := c.AssignRecordTypmod(same)
	m3 := c.AssignRecordTypmod(other)
	assert.Equal(t, int32(0), m1)
	assert.Equal(t, m1, m2)
	assert.Equal(t, int32(1), m3)
	assert.Equal(t, oid.T_record, same.TypeID)
	assert.Equal(t, m2, same.TypeModifier)

	desc, err := c.LookupRowtypeTupdesc(oid.T_record, m3)
	require.NoError(t, err)
	assert.Equal(t, "z", desc.Attrs[1].Name)
	access.DecrTupleDescRefCount(desc)
}

func TestInvalidateKeepsPinnedDescriptor(t *testing.T) {
	c := newCache(t)
	c.RegisterComposite(16400, pairDesc("a"))

	desc, err := c.LookupRowtypeTupdesc(16400, -1)
	require.NoError(t, err)

	c.Invalidate(16400)
	_, err = c.LookupRowtypeTupdesc(16400, -1)
	assert.Error(t, err)
	assert.True(t, c.Context().Owns(desc), "still pinned by the lookup")

	access.DecrTupleDescRefCount(desc)
	assert.False(t, c.Context().Owns(desc))

	c.Invalidate(16400)
}
