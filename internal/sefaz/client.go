// Package sefaz sends NF-e web service requests to the tax authorities over
// SOAP 1.2 with the client certificate held by a certificate.Store.
package sefaz

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rezonia/sefaz-bridge/internal/certificate"
	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

const (
	soapContentType = "application/soap+xml; charset=utf-8"
	maxBodySize     = 10 << 20
	userAgent       = "sefaz-bridge/1.0"
)

// ErrManifestationUnsupported is returned by Manifest: recipient events
// must be signed, and event signing is not implemented
var ErrManifestationUnsupported = errors.New("recipient manifestation is not supported")

// HTTPError is a non-200 answer from a web service
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Config contains transport settings. Empty URLs select the official
// endpoints for the certificate's state and environment.
type Config struct {
	Timeout         time.Duration
	StatusURL       string
	DistributionURL string
	RootCAs         *x509.CertPool
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// Client implements authority.Client
type Client struct {
	store  *certificate.Store
	config Config

	mu         sync.Mutex
	httpClient *http.Client
	clientFor  *certificate.Certificate
	override   *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient uses c for every request instead of building a mutual TLS
// client from the current certificate
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.override = c
	}
}

// NewClient creates a client that authenticates with the store's current
// certificate
func NewClient(store *certificate.Store, config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	c := &Client{store: store, config: config}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryStatus sends consSitNFe to the authorizer of the key's issuing state
func (c *Client) QueryStatus(ctx context.Context, key model.AccessKey) ([]byte, error) {
	cert, err := c.certificate()
	if err != nil {
		return nil, err
	}

	uf, ok := fiscal.StateFromKey(string(key))
	if !ok {
		uf = cert.UF
	}

	body, err := statusRequest(key, cert.Homologation)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	url := c.config.StatusURL
	if url == "" {
		url = StatusURL(uf, cert.Homologation)
	}
	return c.post(ctx, cert, url, statusWSDL+"/nfeConsultaNF", body)
}

// Distribution sends distDFeInt with consChNFe to the national environment
func (c *Client) Distribution(ctx context.Context, key model.AccessKey) ([]byte, error) {
	cert, err := c.certificate()
	if err != nil {
		return nil, err
	}

	holder := cert.Holder
	if !holder.Classified() {
		holder = fiscal.FormatTaxID(key.IssuerTaxID())
	}

	body, err := distributionRequest(key, cert.UF, holder, cert.Homologation)
	if err != nil {
		return nil, fmt.Errorf("failed to build distribution request: %w", err)
	}

	url := c.config.DistributionURL
	if url == "" {
		url = DistributionURL(cert.Homologation)
	}
	return c.post(ctx, cert, url, distributionWSDL+"/nfeDistDFeInteresse", body)
}

// Manifest always fails with ErrManifestationUnsupported
func (c *Client) Manifest(_ context.Context, _ model.AccessKey) ([]byte, error) {
	return nil, ErrManifestationUnsupported
}

func (c *Client) certificate() (*certificate.Certificate, error) {
	cert, _, ok := c.store.Current()
	if !ok {
		return nil, certificate.ErrNoCertificate
	}
	return cert, nil
}

func (c *Client) post(ctx context.Context, cert *certificate.Certificate, url, action string, message []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(message))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf(`%s; action="%s"`, soapContentType, action))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client(cert).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

// client returns the HTTP client for cert, rebuilding it when the current
// certificate changed
func (c *Client) client(cert *certificate.Certificate) *http.Client {
	if c.override != nil {
		return c.override
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient != nil && c.clientFor == cert {
		return c.httpClient
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert.TLSCertificate()},
		RootCAs:      c.config.RootCAs,
		// several authorizers still require renegotiation
		Renegotiation: tls.RenegotiateOnceAsClient,
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
		},
		Timeout: c.config.Timeout,
	}
	c.clientFor = cert
	return c.httpClient
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
