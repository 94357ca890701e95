// Package cache provides bounded key/value caching for enrichment lookups.
//
// Read-heavy, slowly-changing lookups (resolved profile attributes, company
// data) should not repeat expensive network calls within their validity
// window. The in-memory Cache combines per-entry TTL with LRU eviction at a
// configured capacity; expired entries are dropped lazily on read and purged
// by a background sweep. Different data classes warrant different TTLs, so
// construct one instance per class rather than one global cache.
//
// RedisStore offers the same TTL semantics backed by Redis for deployments
// that want lookups shared across replicas.
package cache
