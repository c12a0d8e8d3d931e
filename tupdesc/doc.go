// Package tupdesc wraps host row descriptors so that the right cleanup runs
// exactly once, whatever the descriptor's origin.
//
// A descriptor handed out by the host comes with one of four ownership
// contracts, recorded on the handle as its Provenance:
//
//	ReferenceCounted   the host counts references; release unpins it
//	OwnedCopy          the handle owns a private copy; release frees it
//	BorrowedFromParent a view of a live row container; release does nothing
//	CompositeDerived   resolved from a composite value; released like
//	                   ReferenceCounted, and carries the decoded row
//
// # Scopes
//
// Handles are created through a Scope and released when the scope ends,
// on every exit path:
//
//	err := tupdesc.Run(host, func(s *tupdesc.Scope) error {
//	    td := s.FromRelation(rel)
//	    for a := range td.Attrs() {
//	        fmt.Println(a.Name)
//	    }
//	    return nil
//	})
//
// There is no public release call. IntoAttrs consumes a handle and
// releases it as soon as the iteration ends.
//
// # Trusted constructors
//
// Constructors whose names end in Unchecked take raw host values whose
// ownership contract cannot be verified here. Passing a descriptor with
// the wrong contract corrupts host memory accounting; the caller is
// responsible for getting it right. Everything else on a handle is
// bounds checked.
//
// A scope and its handles belong to one execution context and must not be
// shared between goroutines.
package tupdesc
