package tracker

import (
	gocache "github.com/patrickmn/go-cache"
)

// StatusCache maps a payment reference to its latest known StatusRecord.
// Entries never expire on their own; the cache's lifetime is bound to the
// registry's tracking lifetime, and StopTracking is the only eviction path.
type StatusCache struct {
	c *gocache.Cache
}

func NewStatusCache() *StatusCache {
	return &StatusCache{c: gocache.New(gocache.NoExpiration, 0)}
}

func (sc *StatusCache) Get(reference string) (StatusRecord, bool) {
	v, ok := sc.c.Get(reference)
	if !ok {
		return StatusRecord{}, false
	}
	return v.(StatusRecord), true
}

func (sc *StatusCache) Set(reference string, rec StatusRecord) {
	sc.c.Set(reference, rec, gocache.NoExpiration)
}

func (sc *StatusCache) Delete(reference string) {
	sc.c.Delete(reference)
}
