package access

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

func threeColumns() *TupleDesc {
	desc := CreateTemplateTupleDesc(3)
	TupleDescInitEntry(desc, 1, "id", oid.T_int4, -1)
	TupleDescInitEntry(desc, 2, "name", oid.T_text, -1)
	TupleDescInitEntry(desc, 3, "score", oid.T_float8, -1)
	return desc
}

func TestCreateTemplateTupleDesc(t *testing.T) {
	c := withContext(t)
	desc := threeColumns()

	assert.Equal(t, 3, desc.NAttr)
	assert.Equal(t, -1, desc.RefCount)
	assert.Equal(t, oid.T_record, desc.TypeID)
	assert.Same(t, c, desc.Context())
	assert.True(t, c.Owns(desc))

	a := desc.TupleDescAttr(1)
	assert.Equal(t, "name", a.Name)
	assert.Equal(t, int16(-1), a.Len)
	assert.Equal(t, AttrNumber(2), a.Num)
	assert.Equal(t, "(id int4, name text, score float8)", desc.String())
}

func TestCreateTemplateTupleDescTooWide(t *testing.T) {
	withContext(t)
	err := elog.Try(func() { CreateTemplateTupleDesc(MaxTupleAttributeNumber + 1) })
	assert.Equal(t, elog.ErrCodeProgramLimitExceed, elog.CodeOf(err))
}

func TestCopyConstr(t *testing.T) {
	withContext(t)
	src := threeColumns()
	src.Attrs[0].NotNull = true
	src.Attrs[2].HasDef = true
	src.Constr = &TupleConstr{
		Defaults:   []AttrDefault{{Num: 3, Bin: "0.0"}},
		Checks:     []ConstrCheck{{Name: "score_positive", Bin: "score >= 0"}},
		HasNotNull: true,
	}

	target := mmgr.NewContext(nil, "copy target")
	defer target.Delete()
	old := mmgr.SwitchTo(target)
	cp := CreateTupleDescCopyConstr(src)
	plain := CreateTupleDescCopy(src)
	mmgr.SwitchTo(old)

	assert.True(t, EqualTupleDescs(src, cp))
	assert.NotSame(t, src, cp)
	assert.Same(t, target, cp.Context())
	assert.Equal(t, -1, cp.RefCount)

	cp.Constr.Checks[0].Name = "changed"
	assert.Equal(t, "score_positive", src.Constr.Checks[0].Name)

	assert.Nil(t, plain.Constr)
	assert.False(t, plain.Attrs[0].NotNull)
	assert.True(t, EqualRowTypes(src, plain))
	assert.False(t, EqualTupleDescs(src, plain))
}

func TestRefCounting(t *testing.T) {
	c := withContext(t)
	desc := threeColumns()
	desc.RefCount = 0

	IncrTupleDescRefCount(desc)
	IncrTupleDescRefCount(desc)
	assert.Equal(t, 2, desc.RefCount)

	DecrTupleDescRefCount(desc)
	assert.True(t, c.Owns(desc))
	DecrTupleDescRefCount(desc)
	assert.False(t, c.Owns(desc))

	assert.Panics(t, func() { DecrTupleDescRefCount(desc) })
}

func TestFreeTupleDesc(t *testing.T) {
	c := withContext(t)
	desc := threeColumns()
	FreeTupleDesc(desc)
	assert.False(t, c.Owns(desc))

	err := elog.Try(func() { FreeTupleDesc(desc) })
	assert.Error(t, err, "double free must be reported")

	pinned := threeColumns()
	pinned.RefCount = 1
	assert.Panics(t, func() { FreeTupleDesc(pinned) })
}

func TestIncrOnUncountedAsserts(t *testing.T) {
	withContext(t)
	assert.Panics(t, func() { IncrTupleDescRefCount(threeColumns()) })
}

func TestEqualTupleDescs(t *testing.T) {
	withContext(t)
	a, b := threeColumns(), threeColumns()
	require.True(t, EqualTupleDescs(a, b))

	b.Attrs[1].Name = "title"
	assert.False(t, EqualTupleDescs(a, b))
	assert.False(t, EqualRowTypes(a, b))

	c := threeColumns()
	c.TypeID = 16500
	assert.False(t, EqualTupleDescs(a, c))
	assert.True(t, EqualRowTypes(a, c))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "text", TypeName(oid.T_text))
	assert.Equal(t, "16384", TypeName(16384))
}
