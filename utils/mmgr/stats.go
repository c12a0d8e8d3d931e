package mmgr

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats is a snapshot of a context subtree.
type Stats struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Chunks     int     `json:"chunks"`
	Bytes      int64   `json:"bytes"`
	TotalBytes int64   `json:"total_bytes"`
	Children   []Stats `json:"children,omitempty"`
}

// Stats collects usage for c and all of its descendants.
func (c *Context) Stats() Stats {
	s := Stats{
		Name:       c.name,
		ID:         c.id.String(),
		Chunks:     len(c.chunks),
		Bytes:      c.allocated,
		TotalBytes: c.allocated,
	}
	for _, child := range c.children {
		cs := child.Stats()
		s.TotalBytes += cs.TotalBytes
		s.Children = append(s.Children, cs)
	}
	return s
}

// String renders the subtree one context per line, indented by depth.
func (s Stats) String() string {
	var b strings.Builder
	s.write(&b, 0)
	return b.String()
}

func (s Stats) write(b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s%s: %d chunks, %s used, %s total\n",
		strings.Repeat("  ", depth), s.Name, s.Chunks,
		humanize.IBytes(uint64(s.Bytes)), humanize.IBytes(uint64(s.TotalBytes)))
	for _, child := range s.Children {
		child.write(b, depth+1)
	}
}
