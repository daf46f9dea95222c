package cache

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache is a keyed cache where a missing key is claimed by the first caller,
// so concurrent lookups of the same key share one fetch.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	wait()
}

// Set stores data for key, replacing any claim or previous value.
func Set[T any](cache Cache[T], key string, data T) {
	cache.set(key, data)
}

// Invalidate drops key so the next lookup fetches it again.
func Invalidate[T any](cache Cache[T], key string) {
	cache.delete(key)
}
