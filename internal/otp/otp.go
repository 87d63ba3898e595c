// Package otp holds the rotating one-time pairing code for the host.
package otp

import (
	"crypto/rand"
	"sync"
)

const codeDigits = 6

// Authenticator holds the current pairing code. There is exactly one code at
// a time; rotation atomically invalidates the previous one. The authenticator
// keeps no per-client state, so associating a successful verification with a
// session is the caller's job.
type Authenticator struct {
	mu      sync.RWMutex
	current string
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{}
}

// Current returns the code in effect, or "" before the first rotation.
func (a *Authenticator) Current() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Rotate replaces the current code with a fresh one and returns it.
func (a *Authenticator) Rotate() (string, error) {
	code, err := generate()
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.current = code
	a.mu.Unlock()
	return code, nil
}

// Verify reports whether submitted exactly matches the current code. An
// authenticator that has never rotated matches nothing.
func (a *Authenticator) Verify(submitted string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current != "" && submitted == a.current
}

// generate returns a 6-digit numeric code string from crypto/rand.
func generate() (string, error) {
	b := make([]byte, codeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, codeDigits)
	for i := 0; i < codeDigits; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}
