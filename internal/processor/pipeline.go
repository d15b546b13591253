// Package processor runs raw inputs (NF-e XML, distribution payloads and
// authority responses) through the extraction chain.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/decimal"
	"github.com/rezonia/sefaz-bridge/internal/metrics"
	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
	"github.com/rezonia/sefaz-bridge/internal/payload"
)

// Format is the detected kind of an input
type Format int

const (
	FormatUnknown Format = iota
	FormatXML
	FormatResponse
	FormatPayload
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatResponse:
		return "response"
	case FormatPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// ExtractionMethod tells how the document in a Result was obtained
type ExtractionMethod string

const (
	MethodXML          ExtractionMethod = "xml"
	MethodPayload      ExtractionMethod = "payload"
	MethodDistribution ExtractionMethod = "distribution"
)

// Result is the outcome of processing one input. Error is set instead of
// being returned so batches keep going.
type Result struct {
	Source   string                 `json:"source,omitempty"`
	Document *model.ParsedDocument  `json:"document,omitempty"`
	Method   ExtractionMethod       `json:"method,omitempty"`
	Status   *model.AuthorityStatus `json:"status,omitempty"`
	Outcome  model.Outcome          `json:"outcome,omitempty"`
	Encoding model.PayloadEncoding  `json:"encoding,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    error                  `json:"-"`

	// Number of docZip entries in a distribution response
	Documents int `json:"documents,omitempty"`
}

// Located reports whether a distribution response returned documents
func (r *Result) Located() bool {
	return r.Outcome == model.OutcomeLocated
}

// Input is one named item of a batch
type Input struct {
	Name string
	Data []byte
}

// Pipeline processes inputs. It holds no per-call state and is safe for
// concurrent use.
type Pipeline struct {
	decoder     *payload.Decoder
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records every result in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithConcurrency limits the number of inputs processed at once by ProcessBatch
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// NewPipeline creates a new pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder:     payload.NewDecoder(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process detects the input format and processes it accordingly
func (p *Pipeline) Process(ctx context.Context, data []byte) *Result {
	switch DetectFormat(data) {
	case FormatXML:
		return p.ProcessXMLBytes(ctx, data)
	case FormatResponse:
		return p.ProcessResponse(ctx, data)
	case FormatPayload:
		return p.ProcessPayload(ctx, string(data))
	default:
		return &Result{Error: model.NewSyntaxError("unsupported input format", nil)}
	}
}

// ProcessXML reads r and extracts the document
func (p *Pipeline) ProcessXML(ctx context.Context, r io.Reader) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to read input: %w", err)}
	}
	return p.ProcessXMLBytes(ctx, data)
}

// ProcessXMLBytes extracts the document from NF-e XML
func (p *Pipeline) ProcessXMLBytes(_ context.Context, data []byte) *Result {
	doc, err := xmlparser.ParseDocument(data)
	p.observeParse(err)
	if err != nil {
		return &Result{Method: MethodXML, Error: err}
	}
	return &Result{Document: doc, Method: MethodXML, Warnings: documentWarnings(doc)}
}

// ProcessPayload decodes a docZip payload and extracts the document in it
func (p *Pipeline) ProcessPayload(ctx context.Context, text string) *Result {
	decoded, err := p.decoder.Decode(text)
	if p.metrics != nil {
		p.metrics.ObserveDecode(decoded.Encoding, err)
	}
	if err != nil {
		return &Result{Method: MethodPayload, Error: err}
	}

	result := p.ProcessXMLBytes(ctx, []byte(decoded.XML))
	result.Method = MethodPayload
	result.Encoding = decoded.Encoding
	return result
}

// ProcessResponse interprets an authority response. Only an authorized
// status or a distribution with located documents goes on to extraction, and
// the first complete note is returned; other responses only yield the status.
func (p *Pipeline) ProcessResponse(_ context.Context, body []byte) *Result {
	dist, err := authority.ParseDistribution(body)
	if err != nil {
		p.observeOutcome(model.OutcomeUnparseable)
		return &Result{Method: MethodDistribution, Outcome: model.OutcomeUnparseable, Error: err}
	}

	outcome := dist.Outcome()
	p.observeOutcome(outcome)
	result := &Result{Method: MethodDistribution, Status: &dist.Status, Outcome: outcome}
	if !outcome.Decodable() {
		return result
	}

	result.Documents = len(dist.Documents)
	for _, d := range dist.Documents {
		if d.Err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("NSU %s: %v", d.NSU, d.Err))
			continue
		}
		doc, err := xmlparser.ParseDocument([]byte(d.Payload.XML))
		p.observeParse(err)
		if err != nil {
			continue
		}
		result.Document = doc
		result.Encoding = d.Payload.Encoding
		result.Warnings = append(result.Warnings, documentWarnings(doc)...)
		break
	}

	if result.Document == nil && len(dist.Documents) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("no complete NF-e among %d documents", len(dist.Documents)))
	}
	return result
}

// ProcessBatch processes inputs concurrently. Results keep the input order;
// a failed input never stops the others.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []Input) ([]*Result, error) {
	results := make([]*Result, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := p.Process(ctx, in.Data)
			r.Source = in.Name
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Pipeline) observeParse(err error) {
	if p.metrics != nil {
		p.metrics.ObserveParse(err)
	}
}

func (p *Pipeline) observeOutcome(o model.Outcome) {
	if p.metrics != nil {
		p.metrics.ObserveOutcome(o)
	}
}

func documentWarnings(doc *model.ParsedDocument) []string {
	var warnings []string
	if doc.Recipient.Name == "" {
		warnings = append(warnings, "recipient name not found")
	}
	if !doc.HasAccessKey() {
		warnings = append(warnings, "access key not found")
	}
	if v := doc.Recipient.TotalValue; v != nil && !decimal.IsPositive(*v) {
		warnings = append(warnings, "total value is not positive")
	}
	return warnings
}

// Root elements of authority responses
var responseRoots = map[string]bool{
	"Envelope":      true,
	"retConsSitNFe": true,
	"retDistDFeInt": true,
}

// DetectFormat classifies data by its first bytes: markup is a response when
// its root is a SOAP envelope or a ret* message, otherwise a document; text
// in the base64 alphabet is a payload.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	if len(trimmed) == 0 {
		return FormatUnknown
	}

	if trimmed[0] == '<' {
		root, err := xmlparser.ParseTree(trimmed)
		if err == nil && responseRoots[xmlparser.LocalName(root.Tag)] {
			return FormatResponse
		}
		return FormatXML
	}

	if isBase64(trimmed) {
		return FormatPayload
	}
	return FormatUnknown
}

func isBase64(data []byte) bool {
	for _, c := range data {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=':
		case strings.IndexByte(" \t\r\n", c) >= 0:
		default:
			return false
		}
	}
	return true
}
