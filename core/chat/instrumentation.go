package chat

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tutor/core/chat"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	malformedLines, _ = meter.Int64Counter("chat.stream.malformed_lines",
		metric.WithDescription("Stream lines that could not be decoded and were skipped"))
	submitRetries, _ = meter.Int64Counter("chat.submit.retries",
		metric.WithDescription("Chat submissions retried after a transport failure"))
)
