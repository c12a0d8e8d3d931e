package access

import (
	"bytes"
	"encoding/binary"

	"github.com/lib/pq/oid"
)

type OID = oid.Oid

const (
	InvalidOID OID = 0
	ByteMask       = (1 << ByteLen) - 1
)

// Datum is the stored form of one attribute value. Fixed-length values
// hold exactly attlen bytes in network order; variable-length values are a
// complete varlena, header included.
type Datum []byte

// PackDatum encodes a fixed-size value (bool, sized integers, floats).
func PackDatum(v any) (Datum, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnPackDatum decodes a fixed-size value into ptr.
func (c Datum) UnPackDatum(ptr any) error {
	return binary.Read(bytes.NewReader(c), binary.BigEndian, ptr)
}
