// Package mmgr implements memory contexts: arenas that own host objects
// until they are freed individually or the whole context is reset.
//
// Go memory is garbage collected, so a context does not hand out bytes.
// It records which objects it owns and how large they are. That ledger is
// what makes ownership mistakes visible: freeing an object twice, freeing
// it through the wrong context, or allocating into a deleted context all
// raise an ERROR the same way the host allocator would.
//
// Contexts are not safe for concurrent use. The current context is
// process-global and belongs to the single backend execution.
package mmgr

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"PGTupDesc/utils/elog"
)

// Context owns a set of allocations and a set of child contexts.
type Context struct {
	id        uuid.UUID
	name      string
	parent    *Context
	children  []*Context
	chunks    map[any]int64
	allocated int64
	limit     int64
	deleted   bool
	callbacks []func()
}

var (
	// Top is the root of the context tree. It is never reset.
	Top *Context

	current      *Context
	defaultLimit int64
)

func init() {
	Top = newContext(nil, "TopMemoryContext")
	current = Top
}

func newContext(parent *Context, name string) *Context {
	c := &Context{
		id:     uuid.New(),
		name:   name,
		parent: parent,
		chunks: make(map[any]int64),
		limit:  defaultLimit,
	}
	if parent != nil {
		parent.children = append(parent.children, c)
	}
	return c
}

// NewContext creates a child of parent. A nil parent means Top.
func NewContext(parent *Context, name string) *Context {
	if parent == nil {
		parent = Top
	}
	parent.checkLive("create child in")
	c := newContext(parent, name)
	elog.Logger().Debug("memory context created",
		zap.String("context", name), zap.Stringer("id", c.id), zap.String("parent", parent.name))
	return c
}

// SetDefaultLimit sets the allocation limit, in bytes, given to contexts
// created from now on. Zero means unlimited.
func SetDefaultLimit(n int64) {
	defaultLimit = n
}

// Current returns the context allocations go to by default.
func Current() *Context {
	return current
}

// SwitchTo makes c current and returns the previous context.
func SwitchTo(c *Context) *Context {
	c.checkLive("switch to")
	old := current
	current = c
	return old
}

func (c *Context) ID() uuid.UUID     { return c.id }
func (c *Context) Name() string      { return c.name }
func (c *Context) Parent() *Context  { return c.parent }
func (c *Context) IsDeleted() bool   { return c.deleted }
func (c *Context) Allocated() int64  { return c.allocated }
func (c *Context) NumChunks() int    { return len(c.chunks) }
func (c *Context) SetLimit(n int64)  { c.limit = n }
func (c *Context) Owns(obj any) bool { _, ok := c.chunks[obj]; return ok }

// Alloc records obj as a chunk of size bytes owned by c. obj must be a
// pointer. Exceeding the context limit raises an out of memory ERROR.
func (c *Context) Alloc(obj any, size int64) {
	c.checkLive("allocate in")
	elog.Assert(obj != nil, "cannot allocate a nil chunk")
	if _, dup := c.chunks[obj]; dup {
		elog.Ereport(elog.ERROR, elog.ErrCodeInternalError,
			"chunk already allocated in memory context %q", c.name)
	}
	if c.limit > 0 && c.allocated+size > c.limit {
		elog.Throw(elog.Errorf(elog.ErrCodeOutOfMemory, "out of memory").
			WithDetail("Failed on request of size %d in memory context %q.", size, c.name))
	}
	c.chunks[obj] = size
	c.allocated += size
}

// Free releases a chunk owned by c. Freeing a chunk c does not own, which
// includes freeing it twice, raises an ERROR.
func (c *Context) Free(obj any) {
	c.checkLive("free in")
	size, ok := c.chunks[obj]
	if !ok {
		elog.Ereport(elog.ERROR, elog.ErrCodeInternalError,
			"pfree called with invalid pointer for memory context %q", c.name)
	}
	delete(c.chunks, obj)
	c.allocated -= size
}

// RegisterResetCallback runs fn the next time c is reset or deleted.
// Callbacks run in reverse registration order.
func (c *Context) RegisterResetCallback(fn func()) {
	c.checkLive("register callback in")
	c.callbacks = append(c.callbacks, fn)
}

// Reset deletes all children and releases every chunk, leaving c usable.
func (c *Context) Reset() {
	c.checkLive("reset")
	for len(c.children) > 0 {
		c.children[len(c.children)-1].Delete()
	}
	c.runCallbacks()
	if len(c.chunks) > 0 {
		elog.Logger().Debug("memory context reset",
			zap.String("context", c.name), zap.Int("chunks", len(c.chunks)), zap.Int64("bytes", c.allocated))
	}
	c.chunks = make(map[any]int64)
	c.allocated = 0
}

// Delete resets c and detaches it from its parent. Top cannot be deleted.
// If c is current, its parent becomes current.
func (c *Context) Delete() {
	elog.Assert(c != Top, "cannot delete TopMemoryContext")
	c.Reset()
	if p := c.parent; p != nil {
		for i, child := range p.children {
			if child == c {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	if current == c {
		current = c.parent
	}
	c.deleted = true
	elog.Logger().Debug("memory context deleted", zap.String("context", c.name), zap.Stringer("id", c.id))
}

func (c *Context) runCallbacks() {
	for len(c.callbacks) > 0 {
		fn := c.callbacks[len(c.callbacks)-1]
		c.callbacks = c.callbacks[:len(c.callbacks)-1]
		fn()
	}
}

func (c *Context) checkLive(op string) {
	if c.deleted {
		elog.Ereport(elog.ERROR, elog.ErrCodeInternalError,
			"cannot %s deleted memory context %q", op, c.name)
	}
}
