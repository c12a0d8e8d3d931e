// Package adt converts between stored datums and Go values.
//
// Each builtin type is exposed as a Type[T] value (Text, Int4, Bool, ...)
// that knows its type OID and how to encode and decode T. GetAttr is the
// attribute value decoder used on composite payloads.
package adt

import (
	"unicode/utf8"

	"github.com/lib/pq/oid"

	"PGTupDesc/access"
)

// Type converts datums of one SQL type to and from T.
type Type[T any] interface {
	OID() access.OID
	// FromDatum decodes d; false means d is not a valid value of the type.
	FromDatum(d access.Datum) (T, bool)
	ToDatum(v T) access.Datum
}

var (
	Bool   Type[bool]    = fixedType[bool]{typid: oid.T_bool}
	Int2   Type[int16]   = fixedType[int16]{typid: oid.T_int2}
	Int4   Type[int32]   = fixedType[int32]{typid: oid.T_int4}
	Int8   Type[int64]   = fixedType[int64]{typid: oid.T_int8}
	Oid    Type[uint32]  = fixedType[uint32]{typid: oid.T_oid}
	Float4 Type[float32] = fixedType[float32]{typid: oid.T_float4}
	Float8 Type[float64] = fixedType[float64]{typid: oid.T_float8}
	Text   Type[string]  = textType{typid: oid.T_text}
	Bytea  Type[[]byte]  = byteaType{}
)

type fixedType[T bool | int16 | int32 | int64 | uint32 | float32 | float64] struct {
	typid access.OID
}

func (f fixedType[T]) OID() access.OID { return f.typid }

func (f fixedType[T]) FromDatum(d access.Datum) (T, bool) {
	var v T
	ti, _ := access.LookupTypeInfo(f.typid)
	if len(d) != int(ti.Len) {
		return v, false
	}
	if err := d.UnPackDatum(&v); err != nil {
		return v, false
	}
	return v, true
}

func (f fixedType[T]) ToDatum(v T) access.Datum {
	d, err := access.PackDatum(v)
	if err != nil {
		// every T in the constraint has a fixed size
		panic(err)
	}
	return d
}

type textType struct {
	typid access.OID
}

func (t textType) OID() access.OID { return t.typid }

func (t textType) FromDatum(d access.Datum) (string, bool) {
	plain, err := access.DetoastDatum(d)
	if err != nil {
		return "", false
	}
	body, err := access.VarData(plain)
	if err != nil || !utf8.Valid(body) {
		return "", false
	}
	return string(body), true
}

func (t textType) ToDatum(v string) access.Datum {
	return access.MakeVarlena([]byte(v))
}

type byteaType struct{}

func (byteaType) OID() access.OID { return oid.T_bytea }

func (byteaType) FromDatum(d access.Datum) ([]byte, bool) {
	plain, err := access.DetoastDatum(d)
	if err != nil {
		return nil, false
	}
	body, err := access.VarData(plain)
	if err != nil {
		return nil, false
	}
	return append([]byte(nil), body...), true
}

func (byteaType) ToDatum(v []byte) access.Datum {
	return access.MakeVarlena(v)
}

// binaryCoercible reports whether a stored value of type from can be read
// as type to without conversion.
func binaryCoercible(from, to access.OID) bool {
	if from == to {
		return true
	}
	switch to {
	case oid.T_text, oid.T_varchar, oid.T_bpchar:
		return from == oid.T_text || from == oid.T_varchar || from == oid.T_bpchar
	}
	return false
}

// GetAttr decodes attribute attnum (1-based) of tup as typ. It returns
// false when the attribute is out of range, null, of a type typ cannot
// read, or not a valid value.
func GetAttr[T any](tup *access.HeapTupleData, attnum int, desc *access.TupleDesc, typ Type[T]) (T, bool) {
	var zero T
	if tup == nil || attnum < 1 || attnum > desc.NAttr {
		return zero, false
	}
	attr := desc.TupleDescAttr(attnum - 1)
	if attr.IsDropped || !binaryCoercible(attr.TypeID, typ.OID()) {
		return zero, false
	}
	d, isNull := access.HeapGetAttr(tup, attnum, desc)
	if isNull {
		return zero, false
	}
	return typ.FromDatum(d)
}
