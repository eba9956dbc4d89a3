package observability

import (
	"context"
	"time"
)

// NoopMetrics is a Metrics implementation that records nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordToolBlocked(context.Context, string)                         {}
func (NoopMetrics) RecordAPICall(context.Context, string, int, time.Duration)         {}
func (NoopMetrics) RecordCaseRun(context.Context, string, bool, time.Duration)        {}

var _ Metrics = NoopMetrics{}
