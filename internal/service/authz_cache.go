// Package service assembles the guarded MCP gateway: the authorization
// cache, the server mirroring the upstream, and the run loop.
package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/Microck/bansho/internal/domain/proxy"
)

// defaultAuthzCacheSize bounds the decision cache. The role/tool space
// is tiny in practice; the bound guards against hostile tool names.
const defaultAuthzCacheSize = 1000

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key      uint64
	decision policy.Decision
	prev     *lruEntry
	next     *lruEntry
}

// CachedAuthorizer evaluates the role/tool policy with a bounded LRU
// cache in front. The policy is immutable for the process lifetime, so
// entries never need invalidation. Thread-safe with Mutex (both hit
// and miss mutate LRU order).
type CachedAuthorizer struct {
	policy policy.Policy

	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// NewCachedAuthorizer creates an authorizer over the loaded policy.
// A non-positive maxSize takes the default.
func NewCachedAuthorizer(pol policy.Policy, maxSize int) *CachedAuthorizer {
	if maxSize <= 0 {
		maxSize = defaultAuthzCacheSize
	}
	return &CachedAuthorizer{
		policy:  pol,
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Compile-time check that CachedAuthorizer implements the pipeline port.
var _ proxy.ToolAuthorizer = (*CachedAuthorizer)(nil)

// Authorize returns the policy decision for one role/tool pair,
// serving repeats from the cache.
func (c *CachedAuthorizer) Authorize(role, toolName string) policy.Decision {
	key := authzCacheKey(role, toolName)
	if decision, ok := c.get(key); ok {
		return decision
	}
	decision := policy.Authorize(c.policy, role, toolName)
	c.put(key, decision)
	return decision
}

// Size returns the current cache size.
func (c *CachedAuthorizer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// get retrieves a cached decision, promoting the entry to the head.
func (c *CachedAuthorizer) get(key uint64) (policy.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.decision, true
	}
	return policy.Decision{}, false
}

// put stores a decision, evicting the least recently used entry at
// capacity.
func (c *CachedAuthorizer) put(key uint64, decision policy.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = decision
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, decision: decision}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// moveToHeadLocked moves an existing entry to the head. Must be called with lock held.
func (c *CachedAuthorizer) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

// pushHeadLocked inserts an entry at the head. Must be called with lock held.
func (c *CachedAuthorizer) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// unlinkLocked removes an entry from the linked list. Must be called with lock held.
func (c *CachedAuthorizer) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// evictTailLocked removes the least recently used entry. Must be called with lock held.
func (c *CachedAuthorizer) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// authzCacheKey hashes the role/tool pair. The raw strings go in so
// two distinct pairs never normalize to the same key.
func authzCacheKey(role, toolName string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(role)
	_, _ = h.Write([]byte{0}) // separator
	_, _ = h.WriteString(toolName)
	return h.Sum64()
}
