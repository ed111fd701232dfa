package session

import (
	"sort"
	"strings"
	"sync"
)

// Key names dispatched to sessions. Matching ignores case.
const (
	KeyEscape = "Escape"
	KeyEnter  = "Enter"
)

// KeyBus routes key presses to scoped subscriptions. A subscription lives
// from Acquire until its release func is called.
type KeyBus struct {
	mu       sync.Mutex
	handlers map[string]map[uint64]func()
	next     uint64
}

func NewKeyBus() *KeyBus {
	return &KeyBus{handlers: make(map[string]map[uint64]func())}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Acquire subscribes fn to key. The returned func releases the subscription
// and is safe to call more than once.
func (b *KeyBus) Acquire(key string, fn func()) func() {
	key = normalizeKey(key)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.handlers[key] == nil {
		b.handlers[key] = make(map[uint64]func())
	}
	b.handlers[key][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[key], id)
			if len(b.handlers[key]) == 0 {
				delete(b.handlers, key)
			}
		})
	}
}

// Dispatch runs every handler subscribed to key in subscription order and
// reports whether any ran. Handlers run without the bus lock held.
func (b *KeyBus) Dispatch(key string) bool {
	key = normalizeKey(key)

	b.mu.Lock()
	subs := b.handlers[key]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns) > 0
}

// Active returns the number of live subscriptions for key.
func (b *KeyBus) Active(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[normalizeKey(key)])
}
