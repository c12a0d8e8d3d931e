package access

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"

	"PGTupDesc/utils/elog"
)

// Varlena layout: a 4-byte big-endian header whose top bit flags an
// inline-compressed value and whose low 30 bits hold the total size,
// header included. A compressed body starts with the 4-byte raw body size
// followed by an xz stream.
const (
	VarHdrSz          = 4
	varCompressedFlag = 1 << 31
	varSizeMask       = 1<<30 - 1
	MaxVarlenaSize    = varSizeMask
)

// ToastTupleThreshold is the composite datum size above which
// HeapTupleGetDatum tries inline compression.
var ToastTupleThreshold = 2032

// MakeVarlena prefixes body with an uncompressed varlena header.
func MakeVarlena(body []byte) Datum {
	if len(body)+VarHdrSz > MaxVarlenaSize {
		elog.Ereport(elog.ERROR, elog.ErrCodeProgramLimitExceed, "invalid memory alloc request size %d", len(body)+VarHdrSz)
	}
	d := make(Datum, VarHdrSz+len(body))
	binary.BigEndian.PutUint32(d, uint32(len(d)))
	copy(d[VarHdrSz:], body)
	return d
}

// VarSize returns the total size recorded in a varlena header.
func VarSize(d []byte) (int, error) {
	if len(d) < VarHdrSz {
		return 0, errors.Newf("varlena header truncated: %d bytes", len(d))
	}
	n := int(binary.BigEndian.Uint32(d) & varSizeMask)
	if n < VarHdrSz || n > len(d) {
		return 0, errors.Newf("varlena size %d out of range for %d bytes", n, len(d))
	}
	return n, nil
}

// VarIsCompressed reports whether d holds an inline-compressed value.
func VarIsCompressed(d Datum) bool {
	return len(d) >= VarHdrSz && binary.BigEndian.Uint32(d)&varCompressedFlag != 0
}

// VarData returns the body of an uncompressed varlena.
func VarData(d Datum) ([]byte, error) {
	n, err := VarSize(d)
	if err != nil {
		return nil, err
	}
	return d[VarHdrSz:n], nil
}

// ToastCompress compresses a varlena inline. It returns d unchanged when
// compression does not save space.
func ToastCompress(d Datum) (Datum, error) {
	if VarIsCompressed(d) {
		return d, nil
	}
	body, err := VarData(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(make([]byte, VarHdrSz+4))
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "create xz writer")
	}
	if _, err := w.Write(body); err != nil {
		return nil, errors.Wrap(err, "compress varlena")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "compress varlena")
	}
	out := buf.Bytes()
	if len(out) >= len(d) {
		return d, nil
	}
	binary.BigEndian.PutUint32(out, uint32(len(out))|varCompressedFlag)
	binary.BigEndian.PutUint32(out[VarHdrSz:], uint32(len(body)))
	return out, nil
}

// DetoastDatum returns d in plain uncompressed form.
func DetoastDatum(d Datum) (Datum, error) {
	if !VarIsCompressed(d) {
		if _, err := VarSize(d); err != nil {
			return nil, elog.Wrap(err, elog.ErrCodeDataCorrupted, "invalid varlena")
		}
		return d, nil
	}
	n, err := VarSize(d)
	if err != nil || n < VarHdrSz+4 {
		return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "compressed data is corrupted").
			WithDetail("varlena of %d bytes", len(d))
	}
	rawSize := int(binary.BigEndian.Uint32(d[VarHdrSz:]))
	if rawSize+VarHdrSz > MaxVarlenaSize {
		return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "compressed data is corrupted").
			WithDetail("raw size %d exceeds limit", rawSize)
	}
	r, err := xz.NewReader(bytes.NewReader(d[VarHdrSz+4 : n]))
	if err != nil {
		return nil, elog.Wrap(err, elog.ErrCodeDataCorrupted, "compressed data is corrupted")
	}
	// the buffer grows with what the stream yields, not with the claimed
	// raw size
	body, err := io.ReadAll(io.LimitReader(r, int64(rawSize)+1))
	if err != nil {
		return nil, elog.Wrap(err, elog.ErrCodeDataCorrupted, "compressed data is corrupted")
	}
	if len(body) != rawSize {
		return nil, elog.Errorf(elog.ErrCodeDataCorrupted, "compressed data is corrupted").
			WithDetail("expected %d bytes after decompression, got %d", rawSize, len(body))
	}
	return MakeVarlena(body), nil
}

// HeapTupleGetDatum turns a formed tuple into a composite datum,
// compressing it inline when it exceeds ToastTupleThreshold.
func HeapTupleGetDatum(tup *HeapTupleData) (Datum, error) {
	d := MakeVarlena(tup.Data.Bytes())
	if len(d) <= ToastTupleThreshold {
		return d, nil
	}
	return ToastCompress(d)
}

// DatumGetHeapTupleHeader detoasts a composite datum and parses its header.
func DatumGetHeapTupleHeader(d Datum) (*HeapTupleHeader, error) {
	plain, err := DetoastDatum(d)
	if err != nil {
		return nil, err
	}
	body, err := VarData(plain)
	if err != nil {
		return nil, elog.Wrap(err, elog.ErrCodeDataCorrupted, "invalid composite datum")
	}
	h, err := DecodeHeapTupleHeader(body)
	if err != nil {
		return nil, elog.Wrap(err, elog.ErrCodeDataCorrupted, "invalid composite datum")
	}
	return h, nil
}
