package tupdesc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

// mockHost hands out descriptors and fails the test on any free or unpin
// that does not match an earlier copy or pin.
type mockHost struct {
	t        *testing.T
	rowtypes map[access.OID]*access.TupleDesc
	copies   map[*access.TupleDesc]bool
	pins     map[*access.TupleDesc]int
	freed    []*access.TupleDesc

	copyCalls, freeCalls, incrCalls, decrCalls, lookups int
}

func newMockHost(t *testing.T) *mockHost {
	return &mockHost{
		t:        t,
		rowtypes: make(map[access.OID]*access.TupleDesc),
		copies:   make(map[*access.TupleDesc]bool),
		pins:     make(map[*access.TupleDesc]int),
	}
}

func (m *mockHost) CopyConstr(desc *access.TupleDesc) *access.TupleDesc {
	m.copyCalls++
	c := access.CreateTupleDescCopyConstr(desc)
	m.copies[c] = true
	return c
}

func (m *mockHost) Free(desc *access.TupleDesc) {
	m.freeCalls++
	require.True(m.t, m.copies[desc], "free of a descriptor the host did not hand out")
	delete(m.copies, desc)
	m.freed = append(m.freed, desc)
	access.FreeTupleDesc(desc)
}

func (m *mockHost) IncrRefCount(desc *access.TupleDesc) {
	m.incrCalls++
	m.pin(desc)
}

func (m *mockHost) DecrRefCount(desc *access.TupleDesc) {
	m.decrCalls++
	require.Positive(m.t, m.pins[desc], "unpin without a matching pin")
	m.pins[desc]--
	desc.RefCount--
}

func (m *mockHost) LookupRowtype(typid access.OID, typmod int32) (*access.TupleDesc, error) {
	desc, ok := m.rowtypes[typid]
	if !ok {
		return nil, elog.Errorf(elog.ErrCodeUndefinedObject, "type %d is not composite", uint32(typid))
	}
	m.lookups++
	m.pin(desc)
	return desc, nil
}

func (m *mockHost) Detoast(d access.Datum) (*access.HeapTupleHeader, error) {
	return access.DatumGetHeapTupleHeader(d)
}

// pin records a pin taken on the caller's behalf, as a lookup would.
func (m *mockHost) pin(desc *access.TupleDesc) {
	m.pins[desc]++
	desc.RefCount++
}

// adopt registers desc as a private copy the caller owns.
func (m *mockHost) adopt(desc *access.TupleDesc) *access.TupleDesc {
	m.copies[desc] = true
	return desc
}

func (m *mockHost) requireBalanced() {
	m.t.Helper()
	for desc, n := range m.pins {
		require.Zero(m.t, n, "descriptor %s still pinned", desc)
	}
	require.Empty(m.t, m.copies, "owned copies leaked")
}

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

// fakeContainer is a RowContainer that can be invalidated.
type fakeContainer struct {
	desc  *access.TupleDesc
	valid bool
}

func (f *fakeContainer) TupleDesc() *access.TupleDesc { return f.desc }
func (f *fakeContainer) IsValid() bool                { return f.valid }
