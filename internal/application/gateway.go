package application

import (
	"crypto/sha256"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// GatewayAuth checks the shared key the upstream gateway presents. Only the
// bcrypt hash is kept; keys that already passed are remembered by digest so
// the hash comparison runs once per key.
type GatewayAuth struct {
	hash []byte

	mu       sync.Mutex
	accepted map[[sha256.Size]byte]struct{}
}

func NewGatewayAuth(key string) (*GatewayAuth, error) {
	a := &GatewayAuth{accepted: make(map[[sha256.Size]byte]struct{})}
	if key == "" {
		return a, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a.hash = hash
	return a, nil
}

func (a *GatewayAuth) Enabled() bool {
	return len(a.hash) > 0
}

func (a *GatewayAuth) Verify(key string) bool {
	if !a.Enabled() {
		return true
	}
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	a.mu.Lock()
	_, ok := a.accepted[digest]
	a.mu.Unlock()
	if ok {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return false
	}
	a.mu.Lock()
	a.accepted[digest] = struct{}{}
	a.mu.Unlock()
	return true
}
