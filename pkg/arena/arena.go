// Package arena provides the compiler's single bump allocator: one
// Arena is created per compilation and discarded whole at the end,
// matching §5's "lifetime = one compilation, no GC pressure mid-pass"
// resource model. Modeled structurally on the allocation-request shape
// of nmxmxh-inos_v1's arena allocator, stripped of its shared-memory
// offset bookkeeping and concurrency — this compiler is single-
// threaded (§5), so there is exactly one writer and no locking.
package arena

// Stats reports how much an Arena has handed out.
type Stats struct {
	AllocCount uint64
	BytesLive  uint64
	BytesPeak  uint64
}

// Arena is a bump allocator over growable byte slabs. It never frees
// individual allocations; the whole arena is dropped when a
// compilation finishes.
type Arena struct {
	slabs [][]byte
	stats Stats
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Alloc returns a zeroed byte slice of the requested size, backed by
// the arena. The returned slice must not be retained past the
// compilation that created the arena.
func (a *Arena) Alloc(size int) []byte {
	buf := make([]byte, size)
	a.slabs = append(a.slabs, buf)
	a.stats.AllocCount++
	a.stats.BytesLive += uint64(size)
	if a.stats.BytesLive > a.stats.BytesPeak {
		a.stats.BytesPeak = a.stats.BytesLive
	}
	return buf
}

// AllocString copies s into arena-owned storage and returns it as a
// Go string view over that storage (safe: strings are immutable).
func (a *Arena) AllocString(s string) string {
	buf := a.Alloc(len(s))
	copy(buf, s)
	return string(buf)
}

// Stats returns a snapshot of allocation counters.
func (a *Arena) Stats() Stats { return a.stats }

// Reset drops every slab, returning the arena to its initial state.
// The compiler does not call it: each kernel's Context gets a fresh
// Arena from New.
func (a *Arena) Reset() {
	a.slabs = nil
	a.stats = Stats{}
}
