// Package linkcode holds short-lived verification codes used to link an
// external chat account to a subscriber. Codes live in an explicit expiring
// store with an injected clock so expiry is testable, not ambient state.
package linkcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

type entry struct {
	owner  string
	expiry time.Time
}

// Store maps verification codes to their owner until they expire or are
// redeemed. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	codes map[string]entry
	now   func() time.Time
}

// NewStore builds a store; a nil clock defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{codes: map[string]entry{}, now: now}
}

// Issue creates a fresh 6-digit code for the owner, valid for ttl.
func (s *Store) Issue(owner string, ttl time.Duration) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.codes[code] = entry{owner: owner, expiry: s.now().Add(ttl)}
	return code, nil
}

// Redeem consumes the code and returns its owner. A code redeems at most
// once, and never after expiry.
func (s *Store) Redeem(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	e, ok := s.codes[code]
	if !ok {
		return "", false
	}
	delete(s.codes, code)
	return e.owner, true
}

// Len reports how many unexpired codes are outstanding.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	return len(s.codes)
}

func (s *Store) purgeLocked() {
	now := s.now()
	for code, e := range s.codes {
		if !e.expiry.After(now) {
			delete(s.codes, code)
		}
	}
}
