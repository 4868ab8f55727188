package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxErrorBodySize = 4 << 10

type Stream struct {
	client  *Client
	request Request
}

// Events sends the request and yields the stream's events in arrival order.
// Lines that cannot be decoded are logged and skipped. Transport failures are
// yielded as errors and end the stream.
func (s *Stream) Events(ctx context.Context) func(func(Event, error) bool) {
	return func(yield func(Event, error) bool) {
		ctx, span := tracer.Start(ctx, "chat stream")
		defer span.End()
		span.SetAttributes(attribute.Bool("request.has_session", s.request.SessionID != ""))

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		req, err := s.client.newHTTPRequest(ctx, s.request)
		if err != nil {
			fail(err)
			return
		}

		requestStarted := time.Now()
		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			fail(fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(errorBody)})
			return
		}

		reader := bufio.NewReader(resp.Body)
		lineNumber, received := 0, 0
		defer func() {
			span.SetAttributes(attribute.Int("response.events", received))
		}()
		for {
			line, readErr := reader.ReadBytes('\n')
			if len(line) > 0 {
				lineNumber++
				if event, ok := s.decodeLine(ctx, lineNumber, line); ok {
					if received == 0 {
						span.SetAttributes(attribute.Float64("response.request_to_first_event_time", time.Since(requestStarted).Seconds()))
					}
					received++
					if !yield(event, nil) {
						return
					}
				}
			}

			if errors.Is(readErr, io.EOF) {
				return
			} else if readErr != nil {
				fail(fmt.Errorf("error reading stream: %w", readErr))
				return
			}
		}
	}
}

func (s *Stream) decodeLine(ctx context.Context, lineNumber int, line []byte) (Event, bool) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, false
	}

	event, err := DecodeEvent(line)
	switch {
	case err == nil:
		return event, true
	case errors.Is(err, ErrUnknownEvent):
		logger.WarnContext(ctx, "skipping unknown chat event", "line", lineNumber, "error", err)
	default:
		malformedLines.Add(ctx, 1)
		logger.WarnContext(ctx, "skipping malformed chat event", "line", lineNumber, "error", err)
	}
	return nil, false
}
