package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/lib/pq/oid"

	"PGTupDesc/access"
	"PGTupDesc/catalog"
	"PGTupDesc/tupdesc"
	"PGTupDesc/utils/adt"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
	"PGTupDesc/utils/relcache"
	"PGTupDesc/utils/typcache"
)

// backend is a loaded catalog with its caches.
type backend struct {
	cat   *catalog.Catalog
	mcxt  *mmgr.Context
	rels  *relcache.Cache
	types *typcache.Cache
}

func openBackend(ctx context.Context, g *Globals) (*backend, error) {
	cat, err := catalog.Open(ctx, g.Catalog)
	if err != nil {
		return nil, err
	}
	b := &backend{cat: cat, mcxt: mmgr.NewContext(nil, "CLI")}
	b.rels, b.types = relcache.New(b.mcxt), typcache.New(b.mcxt)
	if _, err := cat.Load(ctx, b.rels, b.types); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backend) Close() {
	b.mcxt.Delete()
	_ = b.cat.Close()
}

func (b *backend) class(ctx context.Context, name string) (catalog.Class, error) {
	classes, err := b.cat.Classes(ctx)
	if err != nil {
		return catalog.Class{}, err
	}
	for _, cls := range classes {
		if cls.Name == name {
			return cls, nil
		}
	}
	return catalog.Class{}, elog.Errorf(elog.ErrCodeUndefinedObject, "%q is not in the catalog", name)
}

type InitCmd struct{}

func (c *InitCmd) Run(g *Globals) error {
	cat, err := catalog.Open(context.Background(), g.Catalog)
	if err != nil {
		return err
	}
	fmt.Printf("catalog ready at %s\n", g.Catalog)
	return cat.Close()
}

type DefineCmd struct {
	OID     uint32   `name:"oid" required:"" help:"OID of the new class."`
	TypeOID uint32   `name:"type-oid" help:"OID of the row type (required for composite types)."`
	Kind    string   `name:"kind" default:"r" enum:"r,v,c" help:"Relation kind: r (table), v (view), c (composite type)."`
	NotNull []string `name:"not-null" help:"Columns declared NOT NULL."`
	Name    string   `arg:"" help:"Class name."`
	Columns []string `arg:"" optional:"" help:"Columns as name:type, e.g. id:int4 name:text."`
}

func (c *DefineCmd) Run(g *Globals) error {
	ctx := context.Background()
	cls := catalog.Class{
		ID:     access.OID(c.OID),
		Name:   c.Name,
		Kind:   relcache.Kind(c.Kind[0]),
		TypeID: access.OID(c.TypeOID),
	}
	notNull := make(map[string]bool, len(c.NotNull))
	for _, n := range c.NotNull {
		notNull[n] = true
	}
	for _, col := range c.Columns {
		name, typname, ok := strings.Cut(col, ":")
		if !ok {
			return errors.Newf("column %q: want name:type", col)
		}
		typid, ok := typeByName(typname)
		if !ok {
			return elog.Errorf(elog.ErrCodeUndefinedObject, "type %q does not exist", typname)
		}
		cls.Attrs = append(cls.Attrs, catalog.Attribute{Name: name, TypeID: typid, TypeMod: -1, NotNull: notNull[name]})
		delete(notNull, name)
	}
	for n := range notNull {
		return errors.Newf("--not-null names unknown column %q", n)
	}

	cat, err := catalog.Open(ctx, g.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.Create(ctx, cls); err != nil {
		return err
	}
	fmt.Printf("defined %s %s with %d columns\n", kindName(cls.Kind), cls.Name, len(cls.Attrs))
	return nil
}

type DropCmd struct {
	OID uint32 `arg:"" help:"OID of the class to remove."`
}

func (c *DropCmd) Run(g *Globals) error {
	ctx := context.Background()
	cat, err := catalog.Open(ctx, g.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()
	return cat.Drop(ctx, access.OID(c.OID))
}

type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	ctx := context.Background()
	cat, err := catalog.Open(ctx, g.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()
	classes, err := cat.Classes(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OID\tKIND\tNAME\tROW TYPE\tCOLUMNS")
	for _, cls := range classes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", uint32(cls.ID), kindName(cls.Kind), cls.Name, uint32(cls.TypeID), len(cls.Attrs))
	}
	return w.Flush()
}

type DescribeCmd struct {
	JSON  bool   `name:"json" help:"Print attributes as JSON."`
	Stats bool   `name:"stats" help:"Print memory context usage afterwards."`
	Name  string `arg:"" help:"Relation name."`
}

func (c *DescribeCmd) Run(g *Globals) error {
	b, err := openBackend(context.Background(), g)
	if err != nil {
		return err
	}
	defer b.Close()

	rel, err := b.rels.OpenByName(c.Name)
	if err != nil {
		return err
	}
	defer rel.Close()

	err = tupdesc.Run(tupdesc.NewBackend(b.types), func(s *tupdesc.Scope) error {
		h := s.FromRelation(rel)
		if c.JSON {
			var attrs []access.FormDataAttribute
			for a := range h.IntoAttrs() {
				attrs = append(attrs, a)
			}
			fmt.Println(elog.NodeDisplay(attrs))
			return nil
		}
		fmt.Printf("%s %q (oid %d, row type %s)\n", kindName(rel.Kind()), rel.Name(), uint32(rel.ID()), access.TypeName(h.TypeID()))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tCOLUMN\tTYPE\tNULLABLE")
		for i, a := range h.All() {
			nullable := "yes"
			if a.NotNull {
				nullable = "no"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, a.Name, access.TypeName(a.TypeID), nullable)
		}
		return w.Flush()
	})
	if err != nil {
		return err
	}
	if c.Stats {
		fmt.Print(mmgr.Top.Stats().String())
	}
	return nil
}

type DecodeCmd struct {
	Name   string   `arg:"" help:"Composite type or relation whose row type to use."`
	Values []string `arg:"" optional:"" help:"One text value per column, NULL for null."`
}

func (c *DecodeCmd) Run(g *Globals) error {
	ctx := context.Background()
	b, err := openBackend(ctx, g)
	if err != nil {
		return err
	}
	defer b.Close()

	cls, err := b.class(ctx, c.Name)
	if err != nil {
		return err
	}
	if cls.TypeID == access.InvalidOID {
		return elog.Errorf(elog.ErrCodeInvalidParameter, "%s has no row type", cls.Name)
	}

	return tupdesc.Run(tupdesc.NewBackend(b.types), func(s *tupdesc.Scope) error {
		desc, err := b.types.LookupRowtypeTupdescCopy(cls.TypeID, -1)
		if err != nil {
			return err
		}
		shape := s.FromPgIsCopyUnchecked(desc)
		if len(c.Values) != shape.Len() {
			return errors.Newf("%s has %d columns, got %d values", cls.Name, shape.Len(), len(c.Values))
		}

		values := make([]access.Datum, shape.Len())
		isNull := make([]bool, shape.Len())
		for i, a := range shape.All() {
			if strings.EqualFold(c.Values[i], "NULL") {
				isNull[i] = true
				continue
			}
			if values[i], err = adt.InputDatum(a.TypeID, c.Values[i]); err != nil {
				return errors.Wrapf(err, "column %s", a.Name)
			}
		}

		var (
			datum   access.Datum
			formErr error
		)
		if err := elog.Try(func() {
			datum, formErr = access.HeapTupleGetDatum(access.HeapFormTuple(shape.Raw(), values, isNull))
		}); err != nil {
			return err
		}
		if formErr != nil {
			return formErr
		}
		fmt.Printf("composite datum: %s", humanize.IBytes(uint64(len(datum))))
		if access.VarIsCompressed(datum) {
			fmt.Print(" (compressed)")
		}
		fmt.Println()

		row, err := s.FromCompositeUnchecked(datum)
		if err != nil {
			return err
		}
		for i, a := range row.All() {
			v, ok := attrText(row, i, a.TypeID)
			if !ok {
				v = "NULL"
			}
			fmt.Printf("  %s = %s\n", a.Name, v)
		}
		return nil
	})
}

// attrText reads attribute i of a composite handle and renders it with the
// type's output function.
func attrText(h *tupdesc.TupleDesc, i int, typid access.OID) (string, bool) {
	switch typid {
	case oid.T_bool:
		return show(h, i, adt.Bool)
	case oid.T_int2:
		return show(h, i, adt.Int2)
	case oid.T_int4:
		return show(h, i, adt.Int4)
	case oid.T_int8:
		return show(h, i, adt.Int8)
	case oid.T_oid:
		return show(h, i, adt.Oid)
	case oid.T_float4:
		return show(h, i, adt.Float4)
	case oid.T_float8:
		return show(h, i, adt.Float8)
	case oid.T_text, oid.T_varchar, oid.T_bpchar:
		return show(h, i, adt.Text)
	case oid.T_bytea:
		return show(h, i, adt.Bytea)
	}
	return "", false
}

func show[T any](h *tupdesc.TupleDesc, i int, typ adt.Type[T]) (string, bool) {
	v, ok := tupdesc.AttrValue(h, i, typ)
	if !ok {
		return "", false
	}
	s, err := adt.OutputDatum(typ.OID(), typ.ToDatum(v))
	return s, err == nil
}

var typesByName map[string]access.OID

func typeByName(name string) (access.OID, bool) {
	if typesByName == nil {
		typesByName = make(map[string]access.OID, len(oid.TypeName))
		for typid, n := range oid.TypeName {
			typesByName[strings.ToLower(n)] = typid
		}
	}
	typid, ok := typesByName[strings.ToLower(name)]
	return typid, ok
}

func kindName(k relcache.Kind) string {
	switch k {
	case relcache.KindTable:
		return "table"
	case relcache.KindView:
		return "view"
	case relcache.KindComposite:
		return "type"
	}
	return k.String()
}
