package nfelib

import (
	"context"
	"fmt"
	"io"

	"github.com/rezonia/sefaz-bridge/internal/processor"
)

// Result is the outcome of processing one input
type Result = processor.Result

// Options configures a Processor
type Options struct {
	// Inputs processed at once by ProcessBatch (default: 4)
	Concurrency int
}

// DefaultOptions returns default processor options
func DefaultOptions() Options {
	return Options{Concurrency: 4}
}

// Processor detects whether an input is an NF-e, a docZip payload or an
// authority response and extracts what it can
type Processor struct {
	pipeline *processor.Pipeline
	options  Options
}

// NewProcessor creates a processor with the given options
func NewProcessor(opts Options) *Processor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Processor{
		pipeline: processor.NewPipeline(processor.WithConcurrency(opts.Concurrency)),
		options:  opts,
	}
}

// NewDefaultProcessor creates a processor with default options
func NewDefaultProcessor() *Processor {
	return NewProcessor(DefaultOptions())
}

// Process reads r and processes it. A failed extraction is returned as the
// error; warnings stay on the result.
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	result := p.pipeline.Process(ctx, data)
	if result.Error != nil {
		return result, result.Error
	}
	return result, nil
}

// ProcessBatch processes inputs concurrently and returns results in input
// order. Per-input failures are reported in Result.Error.
func (p *Processor) ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*Result, error) {
	batch := make([]processor.Input, len(inputs))
	for i, r := range inputs {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %d: %w", i, err)
		}
		batch[i] = processor.Input{Name: fmt.Sprintf("input-%d", i), Data: data}
	}
	return p.pipeline.ProcessBatch(ctx, batch)
}

// Options returns the processor options
func (p *Processor) Options() Options {
	return p.options
}
