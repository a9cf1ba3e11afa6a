package provider

import (
	"context"
	"errors"
	"time"

	"github.com/teilomillet/gproxy/server/metrics"
)

// Outcome labels for upstream metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeEmpty     = "empty"
	OutcomeUpstream  = "upstream_error"
	OutcomeMalformed = "malformed"
	OutcomeTransport = "transport_error"
)

// Instrumented records call counts and latency for a Generator.
type Instrumented struct {
	next    Generator
	metrics *metrics.Metrics
}

// Instrument wraps g. A nil metrics returns g unchanged.
func Instrument(g Generator, m *metrics.Metrics) Generator {
	if m == nil {
		return g
	}
	return &Instrumented{next: g, metrics: m}
}

// Name implements Generator.
func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Generate implements Generator.
func (i *Instrumented) Generate(ctx context.Context, r Request) (*string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, r)
	i.metrics.UpstreamDuration.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())
	i.metrics.UpstreamRequests.WithLabelValues(i.next.Name(), outcome(text, err)).Inc()
	return text, err
}

func outcome(text *string, err error) string {
	if err == nil {
		if text == nil {
			return OutcomeEmpty
		}
		return OutcomeSuccess
	}
	if errors.Is(err, ErrMalformedResponse) {
		return OutcomeMalformed
	}
	var upErr *Error
	if errors.As(err, &upErr) && upErr.StatusCode != 0 {
		return OutcomeUpstream
	}
	return OutcomeTransport
}
