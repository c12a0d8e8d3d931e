package access

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/lib/pq/oid"
	"go.uber.org/zap"

	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/mmgr"
)

// AttrNumber user defined attribute number, starting from 1.
type AttrNumber int16

type AttrDefault struct {
	Num AttrNumber
	Bin string
}

type ConstrCheck struct {
	Name      string
	Bin       string
	Validated bool
}

// TupleConstr holds the optional constraint metadata of a descriptor.
type TupleConstr struct {
	Defaults   []AttrDefault
	Checks     []ConstrCheck
	HasNotNull bool
}

// FormDataAttribute is one pg_attribute row.
type FormDataAttribute struct {
	RelID     OID        `json:"attrelid"`
	Name      string     `json:"attname"`
	TypeID    OID        `json:"atttypid"`
	Len       int16      `json:"attlen"`
	Num       AttrNumber `json:"attnum"`
	TypeMod   int32      `json:"atttypmod"`
	ByVal     bool       `json:"attbyval"`
	Align     byte       `json:"attalign"`
	NotNull   bool       `json:"attnotnull"`
	HasDef    bool       `json:"atthasdef"`
	IsDropped bool       `json:"attisdropped"`
	Collation OID        `json:"attcollation"`
}

// TupleDesc describes the user attributes of a row.
//
// Descriptors that live in the relation or type cache are reference
// counted and are freed when the count drops to zero. Descriptors built by
// the executor are owned by the memory context they were allocated in and
// carry RefCount -1.
type TupleDesc struct {
	NAttr        int
	TypeID       OID // the TypeID indicates the composite type, or RECORD
	TypeModifier int32
	Constr       *TupleConstr // constraints, nil if none
	RefCount     int          // reference count, -1 for not counting.
	Attrs        []FormDataAttribute

	mcxt *mmgr.Context
}

// CreateTemplateTupleDesc allocates a descriptor for natts attributes in
// the current memory context. The attributes must be filled in with
// TupleDescInitEntry.
func CreateTemplateTupleDesc(natts int) *TupleDesc {
	desc := newTupleDesc(natts)
	desc.allocate()
	return desc
}

func newTupleDesc(natts int) *TupleDesc {
	if natts < 0 || natts > MaxTupleAttributeNumber {
		elog.Ereport(elog.ERROR, elog.ErrCodeProgramLimitExceed,
			"number of columns (%d) exceeds limit (%d)", natts, MaxTupleAttributeNumber)
	}
	return &TupleDesc{
		NAttr:        natts,
		TypeID:       oid.T_record,
		TypeModifier: -1,
		RefCount:     -1,
		Attrs:        make([]FormDataAttribute, natts),
	}
}

func (c *TupleDesc) allocate() {
	c.mcxt = mmgr.Current()
	c.mcxt.Alloc(c, c.size())
}

// TupleDescInitEntry fills attribute attnum (1-based) from a type OID.
func TupleDescInitEntry(desc *TupleDesc, attnum AttrNumber, name string, typid OID, typmod int32) {
	elog.Assert(attnum >= 1 && int(attnum) <= desc.NAttr, "attribute number out of range")
	ti, _ := LookupTypeInfo(typid)
	desc.Attrs[attnum-1] = FormDataAttribute{
		Name:    name,
		TypeID:  typid,
		Len:     ti.Len,
		Num:     attnum,
		TypeMod: typmod,
		ByVal:   ti.ByVal,
		Align:   ti.Align,
	}
}

// TupleDescAttr returns the attribute at zero-based index i.
func (c *TupleDesc) TupleDescAttr(i int) *FormDataAttribute {
	return &c.Attrs[i]
}

// Context returns the memory context that owns c.
func (c *TupleDesc) Context() *mmgr.Context {
	return c.mcxt
}

func (c *TupleDesc) size() int64 {
	n := int64(unsafe.Sizeof(*c)) + int64(len(c.Attrs))*int64(unsafe.Sizeof(FormDataAttribute{}))
	for _, a := range c.Attrs {
		n += int64(len(a.Name))
	}
	if c.Constr != nil {
		n += int64(unsafe.Sizeof(*c.Constr))
		for _, d := range c.Constr.Defaults {
			n += int64(len(d.Bin))
		}
		for _, ch := range c.Constr.Checks {
			n += int64(len(ch.Name) + len(ch.Bin))
		}
	}
	return n
}

// CreateTupleDescCopy copies the attributes of desc, without constraints,
// into the current memory context. The copy is not reference counted.
func CreateTupleDescCopy(desc *TupleDesc) *TupleDesc {
	dst := newTupleDesc(desc.NAttr)
	copy(dst.Attrs, desc.Attrs)
	for i := range dst.Attrs {
		dst.Attrs[i].NotNull = false
		dst.Attrs[i].HasDef = false
	}
	dst.TypeID = desc.TypeID
	dst.TypeModifier = desc.TypeModifier
	dst.allocate()
	return dst
}

// CreateTupleDescCopyConstr is CreateTupleDescCopy keeping defaults,
// check constraints and not-null flags.
func CreateTupleDescCopyConstr(desc *TupleDesc) *TupleDesc {
	dst := newTupleDesc(desc.NAttr)
	copy(dst.Attrs, desc.Attrs)
	dst.TypeID = desc.TypeID
	dst.TypeModifier = desc.TypeModifier
	if desc.Constr != nil {
		dst.Constr = &TupleConstr{
			Defaults:   append([]AttrDefault(nil), desc.Constr.Defaults...),
			Checks:     append([]ConstrCheck(nil), desc.Constr.Checks...),
			HasNotNull: desc.Constr.HasNotNull,
		}
	}
	dst.allocate()
	return dst
}

// FreeTupleDesc returns desc to its memory context. A pinned descriptor
// must be released with DecrTupleDescRefCount instead.
func FreeTupleDesc(desc *TupleDesc) {
	elog.Assert(desc.RefCount <= 0, "cannot free a pinned tuple descriptor")
	desc.mcxt.Free(desc)
}

// IncrTupleDescRefCount pins a reference-counted descriptor.
func IncrTupleDescRefCount(desc *TupleDesc) {
	elog.Assert(desc.RefCount >= 0, "tuple descriptor is not reference counted")
	desc.RefCount++
}

// DecrTupleDescRefCount unpins desc and frees it when the last pin goes.
func DecrTupleDescRefCount(desc *TupleDesc) {
	elog.Assert(desc.RefCount > 0, "tuple descriptor reference count underflow")
	desc.RefCount--
	if desc.RefCount == 0 {
		elog.Logger().Debug("freeing reference counted tuple descriptor",
			zap.Uint32("typid", uint32(desc.TypeID)), zap.Int32("typmod", desc.TypeModifier))
		FreeTupleDesc(desc)
	}
}

// EqualTupleDescs reports whether two descriptors describe the same row
// type: same type identity, attributes and constraints.
func EqualTupleDescs(a, b *TupleDesc) bool {
	if a.NAttr != b.NAttr || a.TypeID != b.TypeID {
		return false
	}
	if !EqualRowTypes(a, b) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	ca, cb := a.Constr, b.Constr
	if (ca == nil) != (cb == nil) {
		return false
	}
	if ca != nil {
		if ca.HasNotNull != cb.HasNotNull || len(ca.Defaults) != len(cb.Defaults) || len(ca.Checks) != len(cb.Checks) {
			return false
		}
		for i := range ca.Defaults {
			if ca.Defaults[i] != cb.Defaults[i] {
				return false
			}
		}
		for i := range ca.Checks {
			if ca.Checks[i] != cb.Checks[i] {
				return false
			}
		}
	}
	return true
}

// EqualRowTypes compares only what matters for the physical row layout:
// the attribute count and each attribute's name, type, typmod and dropped
// flag.
func EqualRowTypes(a, b *TupleDesc) bool {
	if a.NAttr != b.NAttr {
		return false
	}
	for i := range a.Attrs {
		x, y := &a.Attrs[i], &b.Attrs[i]
		if x.Name != y.Name || x.TypeID != y.TypeID || x.TypeMod != y.TypeMod || x.IsDropped != y.IsDropped {
			return false
		}
	}
	return true
}

// String renders the descriptor as "name type, ...".
func (c *TupleDesc) String() string {
	parts := make([]string, 0, c.NAttr)
	for i := range c.Attrs {
		a := &c.Attrs[i]
		parts = append(parts, fmt.Sprintf("%s %s", a.Name, TypeName(a.TypeID)))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TypeName returns the lower-case catalog name of a builtin type, or the
// OID in decimal for anything else.
func TypeName(typid OID) string {
	if name, ok := oid.TypeName[typid]; ok {
		return strings.ToLower(name)
	}
	return fmt.Sprintf("%d", uint32(typid))
}
