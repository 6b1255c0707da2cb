package state

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultPlanCacheSize - Number of query identities whose last plan is remembered
const DefaultPlanCacheSize = 10000

// PlanFingerprint - Structural hash of the last plan seen for a query, with informational cost
type PlanFingerprint struct {
	Hash       string
	Cost       float64
	ObservedAt time.Time
}

// PlanRegressionCache remembers the last plan fingerprint per query identity
// and reports when it changes. Entries are only evicted by capacity (least
// recently used first), never by age.
type PlanRegressionCache struct {
	lock    sync.Mutex
	entries *simplelru.LRU[string, PlanFingerprint]
}

func NewPlanRegressionCache(capacity int) *PlanRegressionCache {
	if capacity <= 0 {
		capacity = DefaultPlanCacheSize
	}
	// Only fails for non-positive sizes
	entries, _ := simplelru.NewLRU[string, PlanFingerprint](capacity, nil)
	return &PlanRegressionCache{entries: entries}
}

// Observe stores the fingerprint for the query and returns the one it replaced.
// The plan regressed if a previous fingerprint existed and its hash differs;
// cost changes alone never count.
func (c *PlanRegressionCache) Observe(queryIdentity string, fingerprint PlanFingerprint) (previous PlanFingerprint, regressed bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	previous, found := c.entries.Get(queryIdentity)
	c.entries.Add(queryIdentity, fingerprint)

	return previous, found && previous.Hash != fingerprint.Hash
}

// CheckAndUpdate - Stores the new hash and reports whether it differs from the previous one
func (c *PlanRegressionCache) CheckAndUpdate(queryIdentity string, newPlanHash string) bool {
	_, regressed := c.Observe(queryIdentity, PlanFingerprint{Hash: newPlanHash, ObservedAt: time.Now()})
	return regressed
}

// GetPreviousHash - Last stored hash for the query, without affecting its recency
func (c *PlanRegressionCache) GetPreviousHash(queryIdentity string) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	fingerprint, found := c.entries.Peek(queryIdentity)
	return fingerprint.Hash, found
}

func (c *PlanRegressionCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.entries.Len()
}
