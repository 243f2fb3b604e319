package engine

// depthCache memoizes the aggregated depth of both sides, to the depth
// of the request that last rebuilt it, until any book mutation
// invalidates it. It is not a correctness
// requirement, only a latency optimization, and is always accessed
// from under the owning engine's lock — it needs no locking of its
// own.
type depthCache struct {
	valid bool
	full  bool // built with depth<=0: every level, not just the top N
	bids  []DepthLevel
	asks  []DepthLevel
}

func (c *depthCache) invalidate() {
	c.valid = false
	c.full = false
}

// satisfies reports whether the cache already covers at least depth
// levels on both sides. depth<=0 asks for the entire book, which only
// a cache built unbounded (full) can answer — a cache built for a
// shallower bounded query must not be reused for an unbounded one.
func (c *depthCache) satisfies(depth int) bool {
	if !c.valid {
		return false
	}
	if depth <= 0 {
		return c.full
	}
	return len(c.bids) >= depth && len(c.asks) >= depth
}

func (c *depthCache) set(bids, asks []DepthLevel, depth int) {
	c.bids = bids
	c.asks = asks
	c.valid = true
	c.full = depth <= 0
}
