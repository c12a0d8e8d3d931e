package access

const (
	MaxTupleAttributeNumber = 1664
	ByteLen                 = 8
)

func AlignLength(alignValue uintptr, len uintptr) uintptr {
	// alignValue shall be 2^x.
	return (len + alignValue - 1) & ^(alignValue - 1)
}

func MaxAlign(len uintptr) uintptr {
	return AlignLength(ByteLen, len)
}

// BitmapLen is the number of bytes needed for a null bitmap of n bits.
func BitmapLen(n int) int {
	return (n + ByteLen - 1) / ByteLen
}

// SetNull marks attribute i (zero-based) as null or not null.
func (c *HeapTupleHeader) SetNull(i int, isNull bool) {
	if c.NullBits == nil {
		panic("the null bits are not initialized")
	}
	// a set bit means the attribute is present
	if isNull {
		c.NullBits[i/ByteLen] &= ByteMask ^ (1 << (i % ByteLen))
	} else {
		c.NullBits[i/ByteLen] |= 1 << (i % ByteLen)
	}
}

// AttIsNull reports whether attribute i (zero-based) is null.
func (c *HeapTupleHeader) AttIsNull(i int) bool {
	if !c.HasNulls() {
		return false
	}
	return c.NullBits[i/ByteLen]&(1<<(i%ByteLen)) == 0
}

func (c *HeapTupleHeader) HasNulls() bool {
	return c.InfoMask&HeapHasNull != 0
}
