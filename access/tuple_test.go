package access

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

func withContext(t *testing.T) *mmgr.Context {
	t.Helper()
	c := mmgr.NewContext(nil, t.Name())
	old := mmgr.SwitchTo(c)
	t.Cleanup(func() {
		mmgr.SwitchTo(old)
		c.Delete()
	})
	return c
}

func textDatum(s string) Datum {
	return MakeVarlena([]byte(s))
}

func mustPack(t *testing.T, v any) Datum {
	t.Helper()
	d, err := PackDatum(v)
	require.NoError(t, err)
	return d
}

func NewTestTupleDescValuePair(t *testing.T, n int) (*TupleDesc, []Datum) {
	desc := CreateTemplateTupleDesc(n)
	values := make([]Datum, n)
	kinds := []OID{oid.T_int2, oid.T_int4, oid.T_int8, oid.T_text}
	for i := 0; i < n; i++ {
		typid := kinds[rand.Intn(len(kinds))]
		TupleDescInitEntry(desc, AttrNumber(i+1), "c"+string(rune('a'+i)), typid, -1)
		switch typid {
		case oid.T_int2:
			values[i] = mustPack(t, int16(rand.Intn(1<<15)))
		case oid.T_int4:
			values[i] = mustPack(t, rand.Int31())
		case oid.T_int8:
			values[i] = mustPack(t, rand.Int63())
		default:
			values[i] = textDatum(strings.Repeat("x", rand.Intn(20)))
		}
	}
	return desc, values
}

func TestHeapFormTuple(t *testing.T) {
	withContext(t)
	for i := 0; i < 100; i++ {
		desc, values := NewTestTupleDescValuePair(t, 5)
		tuple := HeapFormTuple(desc, values, nil)
		assert.False(t, tuple.Data.HasNulls())
		for j := range values {
			got, isNull := HeapGetAttr(tuple, j+1, desc)
			require.False(t, isNull)
			assert.Equal(t, values[j], got)
		}
	}
}

func TestHeapFormTupleWithNulls(t *testing.T) {
	withContext(t)
	desc := CreateTemplateTupleDesc(4)
	TupleDescInitEntry(desc, 1, "a", oid.T_int4, -1)
	TupleDescInitEntry(desc, 2, "b", oid.T_text, -1)
	TupleDescInitEntry(desc, 3, "c", oid.T_int8, -1)
	TupleDescInitEntry(desc, 4, "d", oid.T_bool, -1)

	values := []Datum{mustPack(t, int32(7)), nil, mustPack(t, int64(-9)), mustPack(t, true)}
	isNull := []bool{false, true, false, false}
	tuple := HeapFormTuple(desc, values, isNull)
	require.True(t, tuple.Data.HasNulls())

	got, null := HeapGetAttr(tuple, 2, desc)
	assert.True(t, null)
	assert.Nil(t, got)

	got, null = HeapGetAttr(tuple, 3, desc)
	require.False(t, null)
	var v int64
	require.NoError(t, got.UnPackDatum(&v))
	assert.Equal(t, int64(-9), v)

	got, null = HeapGetAttr(tuple, 4, desc)
	require.False(t, null)
	assert.Equal(t, values[3], got)
}

func TestHeapGetAttrOutOfRange(t *testing.T) {
	withContext(t)
	desc, values := NewTestTupleDescValuePair(t, 2)
	tuple := HeapFormTuple(desc, values, nil)

	for _, attnum := range []int{0, -1, 3, 100} {
		_, isNull := HeapGetAttr(tuple, attnum, desc)
		assert.True(t, isNull, "attnum %d", attnum)
	}
}

func TestHeapFormTupleRejectsBadValues(t *testing.T) {
	withContext(t)
	desc := CreateTemplateTupleDesc(1)
	TupleDescInitEntry(desc, 1, "a", oid.T_int4, -1)

	err := elog.Try(func() { HeapFormTuple(desc, []Datum{mustPack(t, int64(1))}, nil) })
	assert.Equal(t, elog.ErrCodeInvalidParameter, elog.CodeOf(err))

	err = elog.Try(func() { HeapFormTuple(desc, nil, nil) })
	assert.Equal(t, elog.ErrCodeInvalidParameter, elog.CodeOf(err))
}

func TestHeaderEncodeDecode(t *testing.T) {
	withContext(t)
	desc := CreateTemplateTupleDesc(2)
	TupleDescInitEntry(desc, 1, "a", oid.T_text, -1)
	TupleDescInitEntry(desc, 2, "b", oid.T_int4, -1)
	desc.TypeID = 16400

	tuple := HeapFormTuple(desc, []Datum{textDatum("test"), nil}, []bool{false, true})
	hdr, err := DecodeHeapTupleHeader(tuple.Data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, OID(16400), HeapTupleHeaderGetTypeID(hdr))
	assert.Equal(t, int32(-1), HeapTupleHeaderGetTypMod(hdr))
	assert.Equal(t, tuple.Len, HeapTupleHeaderGetDatumLength(hdr))
	assert.Equal(t, 2, HeapTupleHeaderGetNatts(hdr))
	assert.True(t, hdr.AttIsNull(1))
	assert.False(t, hdr.AttIsNull(0))

	_, err = DecodeHeapTupleHeader(tuple.Data.Bytes()[:5])
	assert.Error(t, err)
}
