// Package trust holds the CA certificates used to verify SEFAZ web service
// endpoints and uploaded client certificates. Most authorities present
// ICP-Brasil certificates, which system root stores usually lack.
package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// Store manages trusted CA certificates
type Store struct {
	roots     *x509.CertPool
	rootCerts []*x509.Certificate
	now       func() time.Time

	ocsp        *OCSPClient
	ocspCache   *OCSPCache
	ocspTimeout time.Duration
	softFail    bool
}

// Option configures a Store
type Option func(*Store) error

// WithFile adds the CA certificates of a PEM bundle
func WithFile(path string) Option {
	return func(s *Store) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read CA bundle: %w", err)
		}
		return s.AddCertificatesFromPEM(data)
	}
}

// WithClock sets the time used for chain verification
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}

// WithSoftFail accepts certificates whose OCSP status could not be fetched
func WithSoftFail() Option {
	return func(s *Store) error {
		s.softFail = true
		return nil
	}
}

// WithOCSPClient replaces the OCSP responder client
func WithOCSPClient(c *OCSPClient) Option {
	return func(s *Store) error {
		s.ocsp = c
		return nil
	}
}

// WithOCSPTimeout bounds each revocation check
func WithOCSPTimeout(d time.Duration) Option {
	return func(s *Store) error {
		s.ocspTimeout = d
		return nil
	}
}

// New creates a store seeded with the system roots
func New(opts ...Option) (*Store, error) {
	roots, err := x509.SystemCertPool()
	if err != nil || roots == nil {
		roots = x509.NewCertPool()
	}
	return build(roots, opts)
}

// NewEmpty creates a store without system roots
func NewEmpty(opts ...Option) (*Store, error) {
	return build(x509.NewCertPool(), opts)
}

func build(roots *x509.CertPool, opts []Option) (*Store, error) {
	s := &Store{
		roots:       roots,
		now:         time.Now,
		ocsp:        NewOCSPClient(nil),
		ocspCache:   NewOCSPCache(DefaultOCSPCacheTTL),
		ocspTimeout: DefaultOCSPTimeout,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddCertificate adds a single certificate to the store
func (s *Store) AddCertificate(cert *x509.Certificate) {
	if cert != nil {
		s.roots.AddCert(cert)
		s.rootCerts = append(s.rootCerts, cert)
	}
}

// AddCertificatesFromPEM parses and adds every certificate in pemData
func (s *Store) AddCertificatesFromPEM(pemData []byte) error {
	var added int
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("failed to parse certificate: %w", err)
			}
			s.AddCertificate(cert)
			added++
		}
		pemData = rest
	}
	if added == 0 {
		return fmt.Errorf("no certificates found in PEM data")
	}
	return nil
}

// VerifyChain verifies a client certificate against the trusted roots
func (s *Store) VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}

	var interPool *x509.CertPool
	if len(intermediates) > 0 {
		interPool = x509.NewCertPool()
		for _, inter := range intermediates {
			interPool.AddCert(inter)
		}
	}

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: interPool,
		CurrentTime:   s.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	return chains[0], nil
}

// CheckRevocation asks the OCSP responders of cert whether it was revoked.
// It returns true when the certificate is not revoked. Certificates without
// a responder URL are accepted.
func (s *Store) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, fmt.Errorf("certificate or issuer is nil")
	}

	if notRevoked, found := s.ocspCache.Get(cert); found {
		return notRevoked, nil
	}

	if len(cert.OCSPServer) == 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ocspTimeout)
	defer cancel()

	revoked, err := s.ocsp.Check(ctx, cert, issuer)
	if err != nil {
		if s.softFail {
			return true, fmt.Errorf("OCSP check failed (soft-fail enabled): %w", err)
		}
		return false, fmt.Errorf("OCSP check failed: %w", err)
	}

	s.ocspCache.Set(cert, !revoked)
	return !revoked, nil
}

// SoftFail reports whether OCSP failures are tolerated
func (s *Store) SoftFail() bool {
	return s.softFail
}

// Roots returns the certificate pool
func (s *Store) Roots() *x509.CertPool {
	return s.roots
}

// Added returns the certificates added on top of the system roots
func (s *Store) Added() []*x509.Certificate {
	return s.rootCerts
}
