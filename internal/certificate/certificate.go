// Package certificate loads A1 (PKCS#12) client certificates and keeps the
// one currently used for authority requests.
package certificate

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
)

// Accepted bundle extensions
var extensions = []string{".pfx", ".p12"}

// ValidationError reports an unusable certificate upload
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Certificate is an opened A1 certificate with its request settings
type Certificate struct {
	Filename     string
	UF           string
	Homologation bool
	Holder       fiscal.Identity
	Subject      string
	NotAfter     time.Time
	LoadedAt     time.Time

	keyPair tls.Certificate
}

// TLSCertificate returns the key pair for mutual TLS
func (c *Certificate) TLSCertificate() tls.Certificate {
	return c.keyPair
}

// Chain returns the end-entity certificate and the intermediates bundled
// with it
func (c *Certificate) Chain() (*x509.Certificate, []*x509.Certificate) {
	if len(c.keyPair.Certificate) == 0 {
		return nil, nil
	}

	var intermediates []*x509.Certificate
	for _, der := range c.keyPair.Certificate[1:] {
		if cert, err := x509.ParseCertificate(der); err == nil {
			intermediates = append(intermediates, cert)
		}
	}
	leaf := c.keyPair.Leaf
	if leaf == nil {
		leaf, _ = x509.ParseCertificate(c.keyPair.Certificate[0])
	}
	return leaf, intermediates
}

// Expired reports whether the certificate is no longer valid at t
func (c *Certificate) Expired(t time.Time) bool {
	return !c.NotAfter.IsZero() && t.After(c.NotAfter)
}

// Decoder converts a PKCS#12 bundle to PEM blocks
type Decoder func(data []byte, password string) ([]*pem.Block, error)

// Loader opens certificate bundles
type Loader struct {
	decode Decoder
	now    func() time.Time
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithDecoder replaces the PKCS#12 decoder
func WithDecoder(d Decoder) LoaderOption {
	return func(l *Loader) {
		l.decode = d
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader creates a loader backed by golang.org/x/crypto/pkcs12
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{decode: pkcs12.ToPEM, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load validates and opens an uploaded bundle
func Load(filename string, data []byte, password, uf string, homologation bool) (*Certificate, error) {
	return NewLoader().Load(filename, data, password, uf, homologation)
}

// LoadFile opens a bundle from disk
func (l *Loader) LoadFile(path, password, uf string, homologation bool) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	return l.Load(filepath.Base(path), data, password, uf, homologation)
}

// Load checks the file extension and state, then opens the bundle with
// password. The holder tax id is taken from the subject common name.
func (l *Loader) Load(filename string, data []byte, password, uf string, homologation bool) (*Certificate, error) {
	if !validExtension(filename) {
		return nil, NewValidationError("file", "only .pfx or .p12 files are accepted")
	}

	uf = strings.ToUpper(strings.TrimSpace(uf))
	if !fiscal.ValidState(uf) {
		return nil, NewValidationError("uf", fmt.Sprintf("unknown state %q", uf))
	}

	if len(data) == 0 {
		return nil, NewValidationError("file", "empty certificate file")
	}

	blocks, err := l.decode(data, password)
	if err != nil {
		return nil, NewValidationError("password", "wrong password or invalid certificate: "+err.Error())
	}

	keyPair, leaf, err := keyPairFromBlocks(blocks)
	if err != nil {
		return nil, NewValidationError("file", err.Error())
	}

	cert := &Certificate{
		Filename:     filename,
		UF:           uf,
		Homologation: homologation,
		Subject:      leaf.Subject.CommonName,
		NotAfter:     leaf.NotAfter,
		LoadedAt:     l.now(),
		keyPair:      keyPair,
	}
	if holder, ok := fiscal.HolderTaxID(leaf.Subject.CommonName); ok {
		cert.Holder = holder
	}
	return cert, nil
}

// keyPairFromBlocks orders the leaf certificate first and builds the TLS
// key pair from the bundle contents
func keyPairFromBlocks(blocks []*pem.Block) (tls.Certificate, *x509.Certificate, error) {
	var (
		keyPEM  []byte
		leaf    *x509.Certificate
		leafPEM []byte
		chain   bytes.Buffer
	)

	for _, b := range blocks {
		switch {
		case strings.HasSuffix(b.Type, "PRIVATE KEY"):
			keyPEM = pem.EncodeToMemory(&pem.Block{Type: b.Type, Bytes: b.Bytes})
		case b.Type == "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return tls.Certificate{}, nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			encoded := pem.EncodeToMemory(&pem.Block{Type: b.Type, Bytes: b.Bytes})
			if leaf == nil && !c.IsCA {
				leaf, leafPEM = c, encoded
				continue
			}
			chain.Write(encoded)
		}
	}

	if keyPEM == nil {
		return tls.Certificate{}, nil, errors.New("bundle has no private key")
	}
	if leaf == nil {
		return tls.Certificate{}, nil, errors.New("bundle has no end-entity certificate")
	}

	keyPair, err := tls.X509KeyPair(append(leafPEM, chain.Bytes()...), keyPEM)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("private key does not match certificate: %w", err)
	}
	return keyPair, leaf, nil
}

func validExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
