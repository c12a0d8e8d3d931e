package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
	"PGTupDesc/utils/relcache"
	"PGTupDesc/utils/typcache"
)

func openMemory(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func users() Class {
	return Class{
		ID:     16384,
		Name:   "users",
		Kind:   relcache.KindTable,
		TypeID: 16386,
		Attrs: []Attribute{
			{Name: "id", TypeID: oid.T_int4, TypeMod: -1, NotNull: true},
			{Name: "name", TypeID: oid.T_varchar, TypeMod: 68},
			{Name: "score", TypeID: oid.T_float8, TypeMod: -1},
		},
	}
}

func point() Class {
	return Class{
		ID:     16390,
		Name:   "point2",
		Kind:   relcache.KindComposite,
		TypeID: 16391,
		Attrs: []Attribute{
			{Name: "x", TypeID: oid.T_float8, TypeMod: -1},
			{Name: "y", TypeID: oid.T_float8, TypeMod: -1},
		},
	}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)
	require.NoError(t, c.Create(ctx, users()))
	require.NoError(t, c.Create(ctx, point()))

	classes, err := c.Classes(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, users(), classes[0])
	assert.Equal(t, point(), classes[1])
}

func TestCreateRejects(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)
	require.NoError(t, c.Create(ctx, users()))

	err := c.Create(ctx, users())
	assert.Equal(t, elog.ErrCodeDuplicateObject, elog.CodeOf(err))

	dup := users()
	dup.ID, dup.Name = 20000, "dup"
	dup.Attrs = append(dup.Attrs, Attribute{Name: "id", TypeID: oid.T_int8})
	err = c.Create(ctx, dup)
	assert.Equal(t, elog.ErrCodeDuplicateObject, elog.CodeOf(err))

	bad := users()
	bad.ID, bad.Name, bad.Kind = 20001, "bad", 'x'
	err = c.Create(ctx, bad)
	assert.Equal(t, elog.ErrCodeInvalidParameter, elog.CodeOf(err))

	unnamed := users()
	unnamed.ID, unnamed.Name = 20002, "unnamed"
	unnamed.Attrs[1].Name = ""
	err = c.Create(ctx, unnamed)
	assert.Equal(t, elog.ErrCodeInvalidName, elog.CodeOf(err))

	untyped := point()
	untyped.TypeID = 0
	err = c.Create(ctx, untyped)
	assert.Equal(t, elog.ErrCodeInvalidParameter, elog.CodeOf(err))

	classes, err := c.Classes(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1, "rejected classes leave nothing behind")
}

func TestDropCascades(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)
	require.NoError(t, c.Create(ctx, users()))
	require.NoError(t, c.Drop(ctx, 16384))

	classes, err := c.Classes(ctx)
	require.NoError(t, err)
	assert.Empty(t, classes)

	var n int
	require.NoError(t, c.db.QueryRow("SELECT count(*) FROM pg_attribute").Scan(&n))
	assert.Zero(t, n)

	err = c.Drop(ctx, 16384)
	assert.Equal(t, elog.ErrCodeUndefinedTable, elog.CodeOf(err))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)
	require.NoError(t, c.Create(ctx, users()))
	require.NoError(t, c.Create(ctx, point()))

	top := mmgr.NewContext(nil, t.Name())
	defer top.Delete()
	rels, types := relcache.New(top), typcache.New(top)

	n, err := c.Load(ctx, rels, types)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"users"}, rels.Names())

	rel, err := rels.OpenByName("users")
	require.NoError(t, err)
	defer rel.Close()
	desc := rel.TupleDesc()
	assert.Equal(t, 3, desc.NAttr)
	assert.Equal(t, access.OID(16386), desc.TypeID)
	assert.True(t, desc.Attrs[0].NotNull)
	require.NotNil(t, desc.Constr)
	assert.True(t, desc.Constr.HasNotNull)
	assert.Equal(t, int32(68), desc.Attrs[1].TypeMod)

	pt, err := types.LookupRowtypeTupdesc(16391, -1)
	require.NoError(t, err)
	assert.Equal(t, "(x float8, y float8)", pt.String())
	access.DecrTupleDescRefCount(pt)

	row, err := types.LookupRowtypeTupdesc(16386, -1)
	require.NoError(t, err)
	assert.True(t, access.EqualRowTypes(desc, row))
	access.DecrTupleDescRefCount(row)

	_, err = rels.OpenByName("point2")
	assert.Error(t, err, "composite types are not relations")
}

func TestLoadTwiceFails(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)
	require.NoError(t, c.Create(ctx, users()))

	top := mmgr.NewContext(nil, t.Name())
	defer top.Delete()
	rels, types := relcache.New(top), typcache.New(top)
	_, err := c.Load(ctx, rels, types)
	require.NoError(t, err)

	n, err := c.Load(ctx, rels, types)
	assert.Zero(t, n)
	assert.Equal(t, elog.ErrCodeDuplicateObject, elog.CodeOf(err))
}

func TestPersistentFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, users()))
	require.NoError(t, c.Close())

	c, err = Open(ctx, path)
	require.NoError(t, err)
	defer c.Close()
	classes, err := c.Classes(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "users", classes[0].Name)
}
