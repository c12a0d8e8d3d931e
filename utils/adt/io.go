package adt

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/lib/pq/oid"

	"PGTupDesc/access"
	"PGTupDesc/utils/elog"
)

// InputDatum parses the text form of a value of type typid.
func InputDatum(typid access.OID, s string) (access.Datum, error) {
	switch typid {
	case oid.T_bool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "t", "true", "y", "yes", "on", "1":
			return Bool.ToDatum(true), nil
		case "f", "false", "n", "no", "off", "0":
			return Bool.ToDatum(false), nil
		}
		return nil, invalidInput("boolean", s)
	case oid.T_int2:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
		if err != nil {
			return nil, invalidInput("smallint", s)
		}
		return Int2.ToDatum(int16(v)), nil
	case oid.T_int4:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, invalidInput("integer", s)
		}
		return Int4.ToDatum(int32(v)), nil
	case oid.T_int8:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, invalidInput("bigint", s)
		}
		return Int8.ToDatum(v), nil
	case oid.T_oid:
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, invalidInput("oid", s)
		}
		return Oid.ToDatum(uint32(v)), nil
	case oid.T_float4:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil, invalidInput("real", s)
		}
		return Float4.ToDatum(float32(v)), nil
	case oid.T_float8:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, invalidInput("double precision", s)
		}
		return Float8.ToDatum(v), nil
	case oid.T_text, oid.T_varchar, oid.T_bpchar:
		return Text.ToDatum(s), nil
	case oid.T_bytea:
		raw, err := hex.DecodeString(strings.TrimPrefix(s, `\x`))
		if err != nil {
			return nil, invalidInput("bytea", s)
		}
		return Bytea.ToDatum(raw), nil
	}
	return nil, elog.Errorf(elog.ErrCodeInvalidParameter, "no input function for type %s", access.TypeName(typid))
}

// OutputDatum renders a stored value of type typid as text.
func OutputDatum(typid access.OID, d access.Datum) (string, error) {
	var (
		out string
		ok  bool
	)
	switch typid {
	case oid.T_bool:
		var v bool
		if v, ok = Bool.FromDatum(d); ok {
			out = "f"
			if v {
				out = "t"
			}
		}
	case oid.T_int2:
		var v int16
		v, ok = Int2.FromDatum(d)
		out = strconv.FormatInt(int64(v), 10)
	case oid.T_int4:
		var v int32
		v, ok = Int4.FromDatum(d)
		out = strconv.FormatInt(int64(v), 10)
	case oid.T_int8:
		var v int64
		v, ok = Int8.FromDatum(d)
		out = strconv.FormatInt(v, 10)
	case oid.T_oid:
		var v uint32
		v, ok = Oid.FromDatum(d)
		out = strconv.FormatUint(uint64(v), 10)
	case oid.T_float4:
		var v float32
		v, ok = Float4.FromDatum(d)
		out = strconv.FormatFloat(float64(v), 'g', -1, 32)
	case oid.T_float8:
		var v float64
		v, ok = Float8.FromDatum(d)
		out = strconv.FormatFloat(v, 'g', -1, 64)
	case oid.T_text, oid.T_varchar, oid.T_bpchar:
		out, ok = Text.FromDatum(d)
	case oid.T_bytea:
		var v []byte
		v, ok = Bytea.FromDatum(d)
		out = `\x` + hex.EncodeToString(v)
	default:
		return "", elog.Errorf(elog.ErrCodeInvalidParameter, "no output function for type %s", access.TypeName(typid))
	}
	if !ok {
		return "", elog.Errorf(elog.ErrCodeDataCorrupted, "invalid stored value for type %s", access.TypeName(typid))
	}
	return out, nil
}

func invalidInput(typname, s string) error {
	return elog.Errorf(elog.ErrCodeInvalidText, "invalid input syntax for type %s: %q", typname, s)
}
