// Package stream turns a live sequence of text deltas into a forwarded
// sequence for the caller plus one final StructuredAnswer.
package stream

import (
	"context"
	"strings"

	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/provider"
	"go.uber.org/zap"
)

// Result carries the aggregation outcome.
type Result struct {
	// Answer is the final structured answer, always non-nil.
	Answer *domain.StructuredAnswer

	// Usage is set when the vendor reported token accounting.
	Usage domain.Usage

	// Forwarded counts deltas delivered to the caller.
	Forwarded int

	// Cancelled is true when the caller went away before end of stream.
	Cancelled bool
}

// Aggregator consumes provider chunks, forwards deltas and reduces the
// accumulated text into a final answer.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger.Named("stream_aggregator")}
}

// Consume forwards every delta from in to the forward callback in arrival
// order while concatenating them into a buffer. The final answer resolves
// only once in is exhausted:
//
//   - normal completion: the buffer is decoded with the same per-field
//     defaults as the blocking path;
//   - vendor error mid-stream: forwarding stops, the accumulated partial
//     text resolves through the decode-failure fallback;
//   - forward error or context cancellation (caller gone): forwarding
//     stops, the upstream channel is drained to release the producer, and
//     persistence may be skipped by the caller.
//
// Consume never returns a nil Answer.
func (a *Aggregator) Consume(ctx context.Context, in <-chan provider.Chunk, forward func(string) error) *Result {
	var buf strings.Builder
	res := &Result{}

	forwarding := true
	for {
		select {
		case <-ctx.Done():
			res.Cancelled = true
			a.drain(in)
			res.Answer = fallback(buf.String())
			return res

		case chunk, ok := <-in:
			if !ok {
				res.Answer = finalize(buf.String())
				return res
			}

			if chunk.Err != nil {
				a.logger.Warn("vendor error mid-stream, using partial buffer",
					zap.Error(chunk.Err),
					zap.Int("buffered_bytes", buf.Len()),
				)
				a.drain(in)
				res.Answer = fallback(buf.String())
				return res
			}

			if chunk.Usage != nil {
				res.Usage = *chunk.Usage
				continue
			}

			if chunk.Text == "" {
				continue
			}

			buf.WriteString(chunk.Text)

			if forwarding {
				if err := forward(chunk.Text); err != nil {
					a.logger.Debug("caller stopped consuming stream", zap.Error(err))
					forwarding = false
					res.Cancelled = true
					a.drain(in)
					res.Answer = fallback(buf.String())
					return res
				}
				res.Forwarded++
			}
		}
	}
}

// drain empties the channel so the producer can exit promptly.
func (a *Aggregator) drain(in <-chan provider.Chunk) {
	go func() {
		for range in {
		}
	}()
}

// finalize decodes a completed buffer with lenient per-field defaults.
func finalize(text string) *domain.StructuredAnswer {
	if text == "" {
		return fallback(text)
	}
	return provider.DecodeLenient(text)
}

// fallback materializes a best-effort answer from partial text.
func fallback(text string) *domain.StructuredAnswer {
	return &domain.StructuredAnswer{
		Answer:       text,
		Confidence:   50,
		Evidence:     []string{domain.FallbackNote},
		Alternatives: []string{},
	}
}
