// Package lru implements the recency-ordered, byte-bounded linked hash map
// backing the memory tier of tier-cache.
//
// The structure is a classic pairing of container/list with a key index:
// the list keeps total recency order (front = most recently used), the map
// gives O(1) lookup into the list.  Byte accounting lives here too, so the
// owner can assert Σ entry sizes == Bytes() at any point.
//
// Concurrency model
// -----------------
// List is **not** thread-safe.  The owning tier serialises access with its
// own mutex; even lookups mutate state (the recency bump), so there is
// nothing to gain from internal locking.
//
// © 2025 tier-cache authors. MIT License.
package lru

import (
	"container/list"
	"time"
)

// Entry is a resident cache item.  Value is held by reference; callers must
// treat it as immutable.
type Entry struct {
	Key   string
	Value []byte
	Added time.Time
}

func (e *Entry) size() int64 { return int64(len(e.Value)) }

// List is the byte-bounded linked hash map.  The zero value is not usable;
// construct with New.
type List struct {
	ll           *list.List // front = most recently used
	index        map[string]*list.Element
	currentBytes int64
	maxBytes     int64
}

// New returns an empty list bounded by maxBytes.  maxBytes must be > 0.
func New(maxBytes int64) *List {
	return &List{
		ll:       list.New(),
		index:    make(map[string]*list.Element),
		maxBytes: maxBytes,
	}
}

// Get returns the entry for key, bumping it to most-recently-used.
func (l *List) Get(key string) (*Entry, bool) {
	el, ok := l.index[key]
	if !ok {
		return nil, false
	}
	l.ll.MoveToFront(el)
	return el.Value.(*Entry), true
}

// Peek returns the entry for key without touching recency order.
func (l *List) Peek(key string) (*Entry, bool) {
	el, ok := l.index[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry), true
}

// Put admits e, evicting least-recently-used entries until the new total
// fits.  It returns the evicted entries (oldest first) and ok=false when e
// alone exceeds maxBytes, in which case nothing changes.  Replacing an
// existing key adjusts accounting by the size delta and bumps recency.
func (l *List) Put(e *Entry) (evicted []*Entry, ok bool) {
	if e.size() > l.maxBytes {
		return nil, false
	}

	if el, exists := l.index[e.Key]; exists {
		old := el.Value.(*Entry)
		l.currentBytes += e.size() - old.size()
		el.Value = e
		l.ll.MoveToFront(el)
	} else {
		l.index[e.Key] = l.ll.PushFront(e)
		l.currentBytes += e.size()
	}

	for l.currentBytes > l.maxBytes {
		victim := l.removeElement(l.ll.Back())
		evicted = append(evicted, victim)
	}
	return evicted, true
}

// Remove deletes key and returns the removed entry, if any.
func (l *List) Remove(key string) (*Entry, bool) {
	el, ok := l.index[key]
	if !ok {
		return nil, false
	}
	return l.removeElement(el), true
}

// Oldest returns the least-recently-used entry without removing it.
func (l *List) Oldest() *Entry {
	el := l.ll.Back()
	if el == nil {
		return nil
	}
	return el.Value.(*Entry)
}

// Clear drops every entry and resets byte accounting.
func (l *List) Clear() {
	l.ll.Init()
	l.index = make(map[string]*list.Element)
	l.currentBytes = 0
}

// Len returns the number of resident entries.
func (l *List) Len() int { return l.ll.Len() }

// Bytes returns Σ resident entry sizes.
func (l *List) Bytes() int64 { return l.currentBytes }

func (l *List) removeElement(el *list.Element) *Entry {
	e := el.Value.(*Entry)
	l.ll.Remove(el)
	delete(l.index, e.Key)
	l.currentBytes -= e.size()
	return e
}
