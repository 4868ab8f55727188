package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tutor/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	captureRestarts, _ = meter.Int64Counter("orchestration.capture.restarts",
		metric.WithDescription("Speech capture sessions restarted after ending unexpectedly"))
	utterancesEmitted, _ = meter.Int64Counter("orchestration.segmenter.utterances",
		metric.WithDescription("Final utterances emitted after a quiet period"))
)
