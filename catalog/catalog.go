// Package catalog persists relation and composite type definitions in a
// SQLite file laid out like pg_class and pg_attribute, and loads them into
// the relation and type caches at startup.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
	"PGTupDesc/utils/relcache"
	"PGTupDesc/utils/typcache"
)

//go:embed schema.sql
var schema string

const driverName = "sqlite"

// Attribute is one pg_attribute row.
type Attribute struct {
	Name    string     `json:"name"`
	TypeID  access.OID `json:"typid"`
	TypeMod int32      `json:"typmod"`
	NotNull bool       `json:"not_null,omitempty"`
}

// Class is one pg_class row with its attributes in attnum order. For
// tables and views TypeID is the row type, or zero if the relation has
// none; for composite types it is the type being defined.
type Class struct {
	ID     access.OID    `json:"oid"`
	Name   string        `json:"relname"`
	Kind   relcache.Kind `json:"relkind"`
	TypeID access.OID    `json:"reltype"`
	Attrs  []Attribute   `json:"attributes"`
}

type Catalog struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	// one connection: an in-memory database is per connection, and the
	// pragma below is too
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create catalog schema")
	}
	c := &Catalog{db: db, log: elog.Logger().Named("catalog").With(zap.String("path", path))}
	c.log.Debug("catalog opened")
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Create stores a class and its attributes.
func (c *Catalog) Create(ctx context.Context, cls Class) (err error) {
	if err := validate(cls); err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT count(*) FROM pg_class WHERE oid = ? OR relname = ?", uint32(cls.ID), cls.Name).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "check pg_class")
	}
	if exists > 0 {
		return elog.Errorf(elog.ErrCodeDuplicateObject, "relation %q or OID %d already exists", cls.Name, uint32(cls.ID))
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO pg_class (oid, relname, relkind, reltype) VALUES (?, ?, ?, ?)",
		uint32(cls.ID), cls.Name, string(rune(cls.Kind)), uint32(cls.TypeID)); err != nil {
		return errors.Wrapf(err, "insert pg_class %s", cls.Name)
	}
	for i, a := range cls.Attrs {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO pg_attribute (attrelid, attname, atttypid, atttypmod, attnum, attnotnull) VALUES (?, ?, ?, ?, ?, ?)",
			uint32(cls.ID), a.Name, uint32(a.TypeID), a.TypeMod, i+1, a.NotNull); err != nil {
			return errors.Wrapf(err, "insert pg_attribute %s.%s", cls.Name, a.Name)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	c.log.Debug("class created", zap.String("relname", cls.Name), zap.Int("natts", len(cls.Attrs)))
	return nil
}

func validate(cls Class) error {
	switch cls.Kind {
	case relcache.KindTable, relcache.KindView:
	case relcache.KindComposite:
		if cls.TypeID == access.InvalidOID {
			return elog.Errorf(elog.ErrCodeInvalidParameter, "composite type %q needs a type OID", cls.Name)
		}
	default:
		return elog.Errorf(elog.ErrCodeInvalidParameter, "unknown relkind %q", rune(cls.Kind))
	}
	if cls.ID == access.InvalidOID || cls.Name == "" {
		return elog.Errorf(elog.ErrCodeInvalidParameter, "class needs an OID and a name")
	}
	if len(cls.Attrs) > access.MaxTupleAttributeNumber {
		return elog.Errorf(elog.ErrCodeProgramLimitExceed, "tables can have at most %d columns", access.MaxTupleAttributeNumber)
	}
	seen := make(map[string]bool, len(cls.Attrs))
	for _, a := range cls.Attrs {
		if a.Name == "" {
			return elog.Errorf(elog.ErrCodeInvalidName, "column name of %q must not be empty", cls.Name)
		}
		if seen[a.Name] {
			return elog.Errorf(elog.ErrCodeDuplicateObject, "column %q specified more than once", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Drop removes a class and its attributes.
func (c *Catalog) Drop(ctx context.Context, relid access.OID) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM pg_class WHERE oid = ?", uint32(relid))
	if err != nil {
		return errors.Wrapf(err, "drop %d", uint32(relid))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return elog.Errorf(elog.ErrCodeUndefinedTable, "relation with OID %d does not exist", uint32(relid))
	}
	return nil
}

// Classes returns every class ordered by OID.
func (c *Catalog) Classes(ctx context.Context) ([]Class, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT oid, relname, relkind, reltype FROM pg_class ORDER BY oid")
	if err != nil {
		return nil, errors.Wrap(err, "scan pg_class")
	}
	var classes []Class
	index := make(map[access.OID]int)
	for rows.Next() {
		var (
			cls            Class
			relid, reltype uint32
			relkind        string
		)
		if err := rows.Scan(&relid, &cls.Name, &relkind, &reltype); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "scan pg_class")
		}
		cls.ID, cls.TypeID = access.OID(relid), access.OID(reltype)
		if len(relkind) != 1 {
			_ = rows.Close()
			return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "invalid relkind %q for %s", relkind, cls.Name)
		}
		cls.Kind = relcache.Kind(relkind[0])
		index[cls.ID] = len(classes)
		classes = append(classes, cls)
	}
	if err := rows.Close(); err != nil {
		return nil, errors.Wrap(err, "scan pg_class")
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scan pg_class")
	}

	rows, err = c.db.QueryContext(ctx,
		"SELECT attrelid, attname, atttypid, atttypmod, attnum, attnotnull FROM pg_attribute ORDER BY attrelid, attnum")
	if err != nil {
		return nil, errors.Wrap(err, "scan pg_attribute")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a            Attribute
			relid, typid uint32
			attnum       int
		)
		if err := rows.Scan(&relid, &a.Name, &typid, &a.TypeMod, &attnum, &a.NotNull); err != nil {
			return nil, errors.Wrap(err, "scan pg_attribute")
		}
		a.TypeID = access.OID(typid)
		i, ok := index[access.OID(relid)]
		if !ok {
			return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "attribute %q belongs to missing relation %d", a.Name, relid)
		}
		if attnum != len(classes[i].Attrs)+1 {
			return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "relation %s has a gap before attribute %d", classes[i].Name, attnum)
		}
		classes[i].Attrs = append(classes[i].Attrs, a)
	}
	return classes, errors.Wrap(rows.Err(), "scan pg_attribute")
}

// TupleDesc builds the class's row descriptor in the current memory
// context.
func (cls Class) TupleDesc() *access.TupleDesc {
	desc := access.CreateTemplateTupleDesc(len(cls.Attrs))
	for i, a := range cls.Attrs {
		access.TupleDescInitEntry(desc, access.AttrNumber(i+1), a.Name, a.TypeID, a.TypeMod)
		if a.NotNull {
			desc.Attrs[i].NotNull = true
			if desc.Constr == nil {
				desc.Constr = &access.TupleConstr{}
			}
			desc.Constr.HasNotNull = true
		}
	}
	if cls.TypeID != access.InvalidOID {
		desc.TypeID = cls.TypeID
	}
	return desc
}

// Load defines every table and view in rels and registers every row type
// in types. It stops at the first class the caches reject.
func (c *Catalog) Load(ctx context.Context, rels *relcache.Cache, types *typcache.Cache) (int, error) {
	classes, err := c.Classes(ctx)
	if err != nil {
		return 0, err
	}

	tmp := mmgr.NewContext(nil, "catalog load")
	old := mmgr.SwitchTo(tmp)
	defer func() {
		mmgr.SwitchTo(old)
		tmp.Delete()
	}()

	for n, cls := range classes {
		err := elog.Try(func() {
			desc := cls.TupleDesc()
			if cls.Kind != relcache.KindComposite {
				rels.Define(cls.ID, cls.Name, cls.Kind, desc)
			}
			if cls.TypeID != access.InvalidOID {
				types.RegisterComposite(cls.TypeID, desc)
			}
			access.FreeTupleDesc(desc)
		})
		if err != nil {
			return n, errors.Wrapf(err, "load %s", cls.Name)
		}
	}
	c.log.Info("catalog loaded", zap.Int("classes", len(classes)))
	return len(classes), nil
}
