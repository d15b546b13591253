package certificate

import (
	"errors"
	"sync"
)

// ErrNoCertificate is returned when neither an upload nor the environment
// provides a certificate
var ErrNoCertificate = errors.New("no certificate configured")

// Source tells where the current certificate came from
type Source string

const (
	SourceUpload      Source = "upload"
	SourceEnvironment Source = "environment"
)

// Store holds the uploaded certificate. When nothing was uploaded the
// environment certificate, if any, is used.
type Store struct {
	mu       sync.RWMutex
	uploaded *Certificate
	fallback *Certificate
}

// NewStore creates a store with an optional environment certificate
func NewStore(fallback *Certificate) *Store {
	return &Store{fallback: fallback}
}

// Set replaces the uploaded certificate
func (s *Store) Set(c *Certificate) error {
	if c == nil {
		return errors.New("certificate is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = c
	return nil
}

// Current returns the certificate in use and its source
func (s *Store) Current() (*Certificate, Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.uploaded != nil {
		return s.uploaded, SourceUpload, true
	}
	if s.fallback != nil {
		return s.fallback, SourceEnvironment, true
	}
	return nil, "", false
}

// Clear removes the uploaded certificate. The environment certificate stays.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = nil
}
