// Package bucket groups values under the key that produced them.
package bucket

import "iter"

// Bucketer maps keys to the values inserted under them. Keys are remembered in
// first-seen order and values in insertion order.
type Bucketer[K comparable, V any] struct {
	keys    []K
	members map[K][]V
}

func New[K comparable, V any]() *Bucketer[K, V] {
	return &Bucketer[K, V]{members: make(map[K][]V)}
}

// Insert adds v under k and reports whether the bucket now holds more than one
// member, i.e. whether v collided with an earlier value.
func (b *Bucketer[K, V]) Insert(k K, v V) bool {
	existing, ok := b.members[k]
	if !ok {
		b.keys = append(b.keys, k)
	}
	b.members[k] = append(existing, v)
	return len(b.members[k]) > 1
}

// Members returns the values stored under k.
func (b *Bucketer[K, V]) Members(k K) []V {
	return b.members[k]
}

// Len returns the number of distinct keys.
func (b *Bucketer[K, V]) Len() int {
	return len(b.keys)
}

// All yields every bucket, singletons included.
func (b *Bucketer[K, V]) All() iter.Seq2[K, []V] {
	return func(yield func(K, []V) bool) {
		for _, k := range b.keys {
			if !yield(k, b.members[k]) {
				return
			}
		}
	}
}

// Groups yields only buckets with at least two members.
func (b *Bucketer[K, V]) Groups() iter.Seq2[K, []V] {
	return func(yield func(K, []V) bool) {
		for _, k := range b.keys {
			vs := b.members[k]
			if len(vs) < 2 {
				continue
			}
			if !yield(k, vs) {
				return
			}
		}
	}
}

// Duplicates counts the values that sit in multi-member buckets.
func (b *Bucketer[K, V]) Duplicates() int {
	count := 0
	for _, vs := range b.Groups() {
		count += len(vs)
	}
	return count
}
