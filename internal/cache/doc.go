// Package cache provides the gateway's response cache.
//
// Two layers live here. Cache is a byte store with per-entry expiry and
// three backends:
//
//   - memory: in-process LRU bounded by maxEntries
//   - redis: shared store using native key expiry
//   - leveldb: on-disk store with a periodic sweep of expired records
//
// ResponseCache sits on top of a Cache and stores upstream answers under a
// request Fingerprint. Each entry carries its own insertion time and TTL,
// and freshness is checked on every lookup, so a stale entry is never
// served even when the backend has not reclaimed it yet. Backend errors are
// logged and reported as misses.
//
// # Example Usage
//
//	store, err := cache.New(cfg.Spec.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	rc := cache.NewResponseCache(store, cfg.Spec.Cache.TTL.Duration(), cache.WithLogger(logger))
//	defer rc.Close()
//
//	key, _ := cache.Fingerprint("transactions", identity.Subject, payload)
//	if entry, ok := rc.Lookup(ctx, key); ok {
//	    return entry
//	}
package cache
