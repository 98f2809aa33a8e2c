// Package hashtable implements a bucketed hash table with a lock-free Get,
// used by the capability table's quick_cache reverse index.
package hashtable

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// entry_t is one chained element inside a bucket_t. next is updated with
// atomic pointer stores so that a concurrent Get never observes a
// half-built link.
type entry_t[K comparable, V any] struct {
	key   K
	value V
	hash  uint64
	next  atomic.Pointer[entry_t[K, V]]
}

type bucket_t[K comparable, V any] struct {
	sync.Mutex
	first atomic.Pointer[entry_t[K, V]]
}

// Pair_t is a key/value tuple returned by Elems.
type Pair_t[K comparable, V any] struct {
	Key   K
	Value V
}

/// Hashtable_t maps comparable keys to values. Get walks bucket chains
/// without taking any lock; Set and Del serialize per-bucket via a mutex so
/// that chain surgery never races with itself, while a concurrent Get only
/// ever observes a fully linked node.
type Hashtable_t[K comparable, V any] struct {
	buckets []*bucket_t[K, V]
	hashFn  func(K) uint64
}

/// New allocates a table with nbuckets buckets, hashing keys with hashFn.
func New[K comparable, V any](nbuckets int, hashFn func(K) uint64) *Hashtable_t[K, V] {
	if nbuckets <= 0 {
		nbuckets = 1
	}
	ht := &Hashtable_t[K, V]{
		buckets: make([]*bucket_t[K, V], nbuckets),
		hashFn:  hashFn,
	}
	for i := range ht.buckets {
		ht.buckets[i] = &bucket_t[K, V]{}
	}
	return ht
}

func (ht *Hashtable_t[K, V]) bucketFor(h uint64) *bucket_t[K, V] {
	return ht.buckets[h%uint64(len(ht.buckets))]
}

/// Get looks up key without locking; it may still walk through a node that
/// is concurrently being unlinked but will never observe a torn entry.
func (ht *Hashtable_t[K, V]) Get(key K) (V, bool) {
	h := ht.hashFn(key)
	b := ht.bucketFor(h)
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.hash == h && e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

/// Set inserts key/value, replacing any prior value for the same key.
/// Returns true if this was a fresh insert.
func (ht *Hashtable_t[K, V]) Set(key K, value V) bool {
	h := ht.hashFn(key)
	b := ht.bucketFor(h)
	b.Lock()
	defer b.Unlock()

	var prev *entry_t[K, V]
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.hash == h && e.key == key {
			// splice in a fresh node rather than writing e.value under a
			// concurrent lock-free Get
			n := &entry_t[K, V]{key: key, value: value, hash: h}
			n.next.Store(e.next.Load())
			if prev == nil {
				b.first.Store(n)
			} else {
				prev.next.Store(n)
			}
			return false
		}
		prev = e
	}
	n := &entry_t[K, V]{key: key, value: value, hash: h}
	n.next.Store(b.first.Load())
	b.first.Store(n)
	return true
}

/// Del removes key if present; it is a no-op if key is absent.
func (ht *Hashtable_t[K, V]) Del(key K) {
	h := ht.hashFn(key)
	b := ht.bucketFor(h)
	b.Lock()
	defer b.Unlock()

	var prev *entry_t[K, V]
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.hash == h && e.key == key {
			if prev == nil {
				b.first.Store(e.next.Load())
			} else {
				prev.next.Store(e.next.Load())
			}
			return
		}
		prev = e
	}
}

/// Elems returns a snapshot of all key/value pairs currently stored.
func (ht *Hashtable_t[K, V]) Elems() []Pair_t[K, V] {
	out := make([]Pair_t[K, V], 0)
	for _, b := range ht.buckets {
		b.Lock()
		for e := b.first.Load(); e != nil; e = e.next.Load() {
			out = append(out, Pair_t[K, V]{Key: e.key, Value: e.value})
		}
		b.Unlock()
	}
	return out
}

/// String renders the table contents for debugging.
func (ht *Hashtable_t[K, V]) String() string {
	s := ""
	for i, p := range ht.Elems() {
		s += fmt.Sprintf("[%d] %v -> %v\n", i, p.Key, p.Value)
	}
	return s
}
