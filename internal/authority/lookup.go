package authority

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
)

// Client sends requests to the authority web services and returns the raw
// response bodies
type Client interface {
	QueryStatus(ctx context.Context, key model.AccessKey) ([]byte, error)
	Distribution(ctx context.Context, key model.AccessKey) ([]byte, error)
	Manifest(ctx context.Context, key model.AccessKey) ([]byte, error)
}

// ErrRetriesExhausted is returned by RetryPolicy.Poll when no attempt succeeded
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// RetryPolicy bounds the re-query after a manifestation
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy waits two seconds before each of three attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

// Poll waits Backoff and then calls fn, at most MaxAttempts times, until fn
// reports done or fails. Cancelling ctx stops the wait.
func (p RetryPolicy) Poll(ctx context.Context, fn func(attempt int) (bool, error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := wait(ctx, p.Backoff); err != nil {
			return err
		}
		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrRetriesExhausted
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LookupResult is the outcome of a lookup. Document is nil when the status
// was authorized but the full note could not be obtained; Warnings says why.
type LookupResult struct {
	AccessKey    model.AccessKey        `json:"access_key"`
	Status       model.AuthorityStatus  `json:"status"`
	Distribution *model.AuthorityStatus `json:"distribution,omitempty"`
	Manifested   bool                   `json:"manifested,omitempty"`
	Document     *model.ParsedDocument  `json:"document,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// Service runs the lookup workflow against a Client
type Service struct {
	client   Client
	policy   RetryPolicy
	manifest bool
	logger   *slog.Logger
}

// Option configures a Service
type Option func(s *Service)

// WithRetryPolicy sets the policy used after a manifestation
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithManifestation enables the recipient manifestation on a 656 response
func WithManifestation(enabled bool) Option {
	return func(s *Service) {
		s.manifest = enabled
	}
}

// WithLogger sets the logger for queries, retries and skipped documents
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Service
func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:   client,
		policy:   DefaultRetryPolicy(),
		manifest: true,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup queries the status of rawKey and, when authorized, retrieves and
// parses the full note through the distribution service. A non-authorized
// status is returned as a RejectedError.
func (s *Service) Lookup(ctx context.Context, rawKey string) (*LookupResult, error) {
	key, err := fiscal.CleanAccessKey(rawKey)
	if err != nil {
		return nil, err
	}

	body, err := s.client.QueryStatus(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("status query: %w", err)
	}

	status, err := Interpret(body)
	if err != nil {
		s.logger.WarnContext(ctx, "unparseable status response", "key", key, "error", err)
		return nil, err
	}
	s.logger.InfoContext(ctx, "status query", "key", key, "code", status.Code, "reason", status.Reason)

	if !status.Authorized() {
		return nil, model.NewRejectedError("status query", status)
	}

	result := &LookupResult{AccessKey: key, Status: status}

	dist, err := s.distribution(ctx, key)
	if err != nil {
		result.warn("distribution query failed: %v", err)
		return result, nil
	}

	if dist.ImproperUse() && s.manifest {
		dist = s.manifestAndRetry(ctx, key, dist, result)
	}
	result.Distribution = &dist.Status

	if !dist.Located() {
		result.warn("full document not available: distribution status %s: %s", dist.Status.Code, dist.Status.Reason)
		return result, nil
	}

	result.Document = s.pickDocument(ctx, key, dist)
	if result.Document == nil {
		result.warn("no complete NF-e among %d distributed documents", len(dist.Documents))
		return result, nil
	}
	if !result.Document.HasAccessKey() {
		result.Document.AccessKey = key
		result.Document.State, _ = fiscal.StateFromKey(string(key))
	}
	return result, nil
}

func (s *Service) distribution(ctx context.Context, key model.AccessKey) (*Distribution, error) {
	body, err := s.client.Distribution(ctx, key)
	if err != nil {
		return nil, err
	}
	dist, err := ParseDistribution(body)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "distribution query", "key", key, "code", dist.Status.Code, "documents", len(dist.Documents))
	return dist, nil
}

// manifestAndRetry registers the recipient manifestation and re-queries the
// distribution until documents are located. On any failure the original
// response is kept.
func (s *Service) manifestAndRetry(ctx context.Context, key model.AccessKey, dist *Distribution, result *LookupResult) *Distribution {
	if _, err := s.client.Manifest(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "manifestation failed", "key", key, "error", err)
		result.warn("automatic manifestation failed: %v", err)
		return dist
	}
	result.Manifested = true

	var located *Distribution
	err := s.policy.Poll(ctx, func(attempt int) (bool, error) {
		retry, err := s.distribution(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "distribution retry failed", "key", key, "attempt", attempt, "error", err)
			return false, nil
		}
		if retry.Located() {
			located = retry
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		result.warn("distribution retry after manifestation: %v", err)
		return dist
	}
	return located
}

// pickDocument returns the first decoded document holding a complete note
// for key. A note without a key of its own is accepted.
func (s *Service) pickDocument(ctx context.Context, key model.AccessKey, dist *Distribution) *model.ParsedDocument {
	for _, doc := range dist.Documents {
		if doc.Err != nil {
			s.logger.WarnContext(ctx, "undecodable docZip", "nsu", doc.NSU, "error", doc.Err)
			continue
		}
		parsed, err := xmlparser.ParseDocument([]byte(doc.Payload.XML))
		if err != nil {
			s.logger.DebugContext(ctx, "skipping docZip", "nsu", doc.NSU, "schema", doc.Schema, "error", err)
			continue
		}
		if parsed.HasAccessKey() && parsed.AccessKey != key {
			s.logger.WarnContext(ctx, "docZip for another note", "nsu", doc.NSU, "key", key, "found", parsed.AccessKey)
			continue
		}
		return parsed
	}
	return nil
}

func (r *LookupResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
