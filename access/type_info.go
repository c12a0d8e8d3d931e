package access

import "github.com/lib/pq/oid"

// Alignment codes, as stored in pg_type.typalign.
const (
	AlignChar   byte = 'c'
	AlignShort  byte = 's'
	AlignInt    byte = 'i'
	AlignDouble byte = 'd'
)

// TypeInfo is the storage shape of a type.
type TypeInfo struct {
	Len   int16 // -1 for varlena
	ByVal bool
	Align byte
}

var builtinTypes = map[OID]TypeInfo{
	oid.T_bool:    {Len: 1, ByVal: true, Align: AlignChar},
	oid.T_char:    {Len: 1, ByVal: true, Align: AlignChar},
	oid.T_int2:    {Len: 2, ByVal: true, Align: AlignShort},
	oid.T_int4:    {Len: 4, ByVal: true, Align: AlignInt},
	oid.T_oid:     {Len: 4, ByVal: true, Align: AlignInt},
	oid.T_float4:  {Len: 4, ByVal: true, Align: AlignInt},
	oid.T_int8:    {Len: 8, ByVal: true, Align: AlignDouble},
	oid.T_float8:  {Len: 8, ByVal: true, Align: AlignDouble},
	oid.T_text:    {Len: -1, Align: AlignInt},
	oid.T_varchar: {Len: -1, Align: AlignInt},
	oid.T_bpchar:  {Len: -1, Align: AlignInt},
	oid.T_bytea:   {Len: -1, Align: AlignInt},
	oid.T_json:    {Len: -1, Align: AlignInt},
	oid.T_record:  {Len: -1, Align: AlignDouble},
}

// LookupTypeInfo returns the storage shape of a builtin type. Any other
// type, composite types included, is stored as a double-aligned varlena.
func LookupTypeInfo(typid OID) (TypeInfo, bool) {
	if ti, ok := builtinTypes[typid]; ok {
		return ti, true
	}
	return TypeInfo{Len: -1, Align: AlignDouble}, false
}

// AlignOf returns the byte alignment for an alignment code.
func AlignOf(align byte) uintptr {
	switch align {
	case AlignShort:
		return 2
	case AlignInt:
		return 4
	case AlignDouble:
		return 8
	}
	return 1
}
