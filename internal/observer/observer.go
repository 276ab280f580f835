// Package observer provides subscriber lists with stable unsubscribe tokens.
package observer

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/adaptive"
)

// Token is the subscription handle shared by every list.
type Token = adaptive.Token

var nextToken atomic.Uint64

// List is an ordered set of callbacks. Callbacks run in subscription order.
//
// List is safe for concurrent use. Notify never holds the lock while a
// callback runs, so callbacks may subscribe or unsubscribe.
type List[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
}

type entry[T any] struct {
	token Token
	fn    func(T)
}

// Add appends fn and returns its token. A nil fn is ignored and returns 0.
func (l *List[T]) Add(fn func(T)) Token {
	if fn == nil {
		return 0
	}
	tok := Token(nextToken.Add(1))
	l.mu.Lock()
	l.entries = append(l.entries, entry[T]{token: tok, fn: fn})
	l.mu.Unlock()
	return tok
}

// Remove drops the subscription for tok. It reports whether tok was present.
func (l *List[T]) Remove(tok Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.token == tok {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear removes every subscriber.
func (l *List[T]) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Notify calls every subscriber with v.
func (l *List[T]) Notify(v T) {
	l.mu.RLock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}
