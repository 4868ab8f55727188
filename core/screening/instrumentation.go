package screening

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tutor/core/screening"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	screenedOut, _       = meter.Int64Counter("screening.screened_out", metric.WithDescription("Utterances answered with a redirect"))
	screeningFailures, _ = meter.Int64Counter("screening.failures", metric.WithDescription("Classifier calls that failed open"))
)
