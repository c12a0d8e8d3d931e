package access

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"PGTupDesc/utils/elog"
)

// InfoMask bits.
const (
	HeapHasNull     uint16 = 0x0001
	HeapHasVarWidth uint16 = 0x0002
)

// heapTupleHeaderFixedLen is the encoded size of the fixed header fields:
// datum length, type id, typmod, natts, infomask and hoff.
const heapTupleHeaderFixedLen = 4 + 4 + 4 + 2 + 2 + 1

// HeapTupleHeader is the self-describing part of a stored row. For a
// composite datum it records the row type the data conforms to.
type HeapTupleHeader struct {
	DatumLen uint32
	TypeID   OID
	TypeMod  int32
	NAttrs   uint16
	InfoMask uint16
	Hoff     uint8
	NullBits []uint8
	Data     []byte
}

// HeapTupleData is a view of a header plus its total length.
type HeapTupleData struct {
	Len      uint32
	TableOID OID
	Data     *HeapTupleHeader
}

func HeapTupleHeaderGetTypeID(h *HeapTupleHeader) OID         { return h.TypeID }
func HeapTupleHeaderGetTypMod(h *HeapTupleHeader) int32       { return h.TypeMod }
func HeapTupleHeaderGetDatumLength(h *HeapTupleHeader) uint32 { return h.DatumLen }
func HeapTupleHeaderGetNatts(h *HeapTupleHeader) int          { return int(h.NAttrs) }

// HeapFormTuple builds a tuple from one datum per attribute of desc.
// isNull may be nil when no value is null.
func HeapFormTuple(desc *TupleDesc, values []Datum, isNull []bool) *HeapTupleData {
	numOfAttr := desc.NAttr

	if numOfAttr > MaxTupleAttributeNumber {
		elog.Ereport(elog.ERROR, elog.ErrCodeProgramLimitExceed,
			"number of columns (%d) exceeds limit (%d)", numOfAttr, MaxTupleAttributeNumber)
	}
	if len(values) != numOfAttr || (isNull != nil && len(isNull) != numOfAttr) {
		elog.Ereport(elog.ERROR, elog.ErrCodeInvalidParameter,
			"tuple has %d attributes but %d values were supplied", numOfAttr, len(values))
	}

	hdr := &HeapTupleHeader{
		TypeID:  desc.TypeID,
		TypeMod: desc.TypeModifier,
		NAttrs:  uint16(numOfAttr),
	}

	hasNull := false
	for i := 0; isNull != nil && i < numOfAttr; i++ {
		if isNull[i] {
			hasNull = true
			break
		}
	}
	hoff := uintptr(heapTupleHeaderFixedLen)
	if hasNull {
		hdr.NullBits = make([]byte, BitmapLen(numOfAttr))
		hdr.InfoMask |= HeapHasNull
		hoff += uintptr(len(hdr.NullBits))
	}
	hoff = MaxAlign(hoff)
	hdr.Hoff = uint8(hoff)

	dataLen := HeapComputeDataSize(desc, values, isNull)
	hdr.Data = make([]byte, dataLen)
	hdr.DatumLen = uint32(hoff + dataLen)

	tuple := &HeapTupleData{
		Len:      hdr.DatumLen,
		TableOID: InvalidOID,
		Data:     hdr,
	}
	return tuple.HeapFillTuple(desc, values, isNull)
}

func (c *HeapTupleData) HeapFillTuple(desc *TupleDesc, values []Datum, isNull []bool) *HeapTupleData {
	td := c.Data
	offset := uintptr(0)
	for i := 0; i < desc.NAttr; i++ {
		if td.NullBits != nil {
			td.SetNull(i, isNull[i])
		}
		if isNull != nil && isNull[i] {
			continue
		}
		attr := desc.TupleDescAttr(i)
		offset = AlignLength(AlignOf(attr.Align), offset)
		v := values[i]
		if attr.Len > 0 {
			if len(v) != int(attr.Len) {
				elog.Ereport(elog.ERROR, elog.ErrCodeInvalidParameter,
					"value for attribute %q has length %d, expected %d", attr.Name, len(v), attr.Len)
			}
		} else {
			td.InfoMask |= HeapHasVarWidth
			if n, err := VarSize(v); err != nil || n != len(v) {
				elog.Ereport(elog.ERROR, elog.ErrCodeInvalidParameter,
					"value for attribute %q is not a valid varlena", attr.Name)
			}
		}
		offset += uintptr(copy(td.Data[offset:], v))
	}
	elog.Assert(offset == uintptr(len(td.Data)), "heap filling got error: the total offset does not match value length")
	return c
}

func HeapComputeDataSize(desc *TupleDesc, values []Datum, isNull []bool) uintptr {
	var dataLen uintptr = 0
	for i := 0; i < desc.NAttr; i++ {
		if isNull != nil && isNull[i] {
			continue
		}
		attr := desc.TupleDescAttr(i)
		dataLen = AlignLength(AlignOf(attr.Align), dataLen)
		dataLen += uintptr(len(values[i]))
	}
	return dataLen
}

// HeapGetAttr extracts attribute attnum (1-based) from tup. The returned
// datum aliases the tuple's data. Attributes beyond the tuple's stored
// count, or beyond desc, read as null.
func HeapGetAttr(tup *HeapTupleData, attnum int, desc *TupleDesc) (Datum, bool) {
	hdr := tup.Data
	if attnum < 1 || attnum > int(hdr.NAttrs) || attnum > desc.NAttr {
		return nil, true
	}
	if hdr.AttIsNull(attnum - 1) {
		return nil, true
	}
	offset := uintptr(0)
	for i := 0; i < attnum; i++ {
		if hdr.AttIsNull(i) {
			continue
		}
		attr := desc.TupleDescAttr(i)
		offset = AlignLength(AlignOf(attr.Align), offset)
		if offset > uintptr(len(hdr.Data)) {
			return nil, true
		}
		var n int
		if attr.Len > 0 {
			n = int(attr.Len)
		} else {
			var err error
			if n, err = VarSize(hdr.Data[offset:]); err != nil {
				return nil, true
			}
		}
		if offset+uintptr(n) > uintptr(len(hdr.Data)) {
			return nil, true
		}
		if i == attnum-1 {
			return hdr.Data[offset : offset+uintptr(n)], false
		}
		offset += uintptr(n)
	}
	return nil, true
}

// Bytes encodes the header and its data in stored form.
func (c *HeapTupleHeader) Bytes() []byte {
	out := make([]byte, c.DatumLen)
	binary.BigEndian.PutUint32(out[0:], c.DatumLen)
	binary.BigEndian.PutUint32(out[4:], uint32(c.TypeID))
	binary.BigEndian.PutUint32(out[8:], uint32(c.TypeMod))
	binary.BigEndian.PutUint16(out[12:], c.NAttrs)
	binary.BigEndian.PutUint16(out[14:], c.InfoMask)
	out[16] = c.Hoff
	copy(out[heapTupleHeaderFixedLen:], c.NullBits)
	copy(out[c.Hoff:], c.Data)
	return out
}

// DecodeHeapTupleHeader parses a stored header. The result aliases b.
func DecodeHeapTupleHeader(b []byte) (*HeapTupleHeader, error) {
	if len(b) < heapTupleHeaderFixedLen {
		return nil, errors.Newf("heap tuple header truncated: %d bytes", len(b))
	}
	h := &HeapTupleHeader{
		DatumLen: binary.BigEndian.Uint32(b[0:]),
		TypeID:   OID(binary.BigEndian.Uint32(b[4:])),
		TypeMod:  int32(binary.BigEndian.Uint32(b[8:])),
		NAttrs:   binary.BigEndian.Uint16(b[12:]),
		InfoMask: binary.BigEndian.Uint16(b[14:]),
		Hoff:     b[16],
	}
	if int(h.DatumLen) != len(b) {
		return nil, errors.Newf("heap tuple length %d does not match datum size %d", h.DatumLen, len(b))
	}
	if int(h.Hoff) < heapTupleHeaderFixedLen || int(h.Hoff) > len(b) {
		return nil, errors.Newf("invalid heap tuple header offset %d", h.Hoff)
	}
	if h.HasNulls() {
		end := heapTupleHeaderFixedLen + BitmapLen(int(h.NAttrs))
		if end > int(h.Hoff) {
			return nil, errors.Newf("null bitmap for %d attributes overruns header offset %d", h.NAttrs, h.Hoff)
		}
		h.NullBits = b[heapTupleHeaderFixedLen:end]
	}
	h.Data = b[h.Hoff:]
	return h, nil
}
