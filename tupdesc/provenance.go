package tupdesc

import "fmt"

// Provenance records where a handle's descriptor came from, and therefore
// what releasing it means.
type Provenance uint8

const (
	ReferenceCounted Provenance = iota
	OwnedCopy
	BorrowedFromParent
	CompositeDerived
)

func (p Provenance) String() string {
	switch p {
	case ReferenceCounted:
		return "reference-counted"
	case OwnedCopy:
		return "owned-copy"
	case BorrowedFromParent:
		return "borrowed"
	case CompositeDerived:
		return "composite"
	}
	return fmt.Sprintf("Provenance(%d)", uint8(p))
}
