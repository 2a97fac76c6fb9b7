// Package lock serializes mutations of one entity across goroutines.
package lock

import "sync"

// Keyed hands out one mutex per key. Entries are reference counted and
// dropped once no goroutine holds or waits for them.
//
// Callers that take several keys must take them in the order
// user, order, intent, payment.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed creates an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock blocks until key is held and returns the function that releases it.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// UserKey, OrderKey, IntentKey and PaymentKey namespace entity IDs.
func UserKey(id string) string    { return "user:" + id }
func OrderKey(id string) string   { return "order:" + id }
func IntentKey(id string) string  { return "intent:" + id }
func PaymentKey(id string) string { return "payment:" + id }
