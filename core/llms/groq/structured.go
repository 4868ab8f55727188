package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/llms"
)

const url = "https://api.groq.com/openai/v1/chat/completions"

var (
	// ErrUnexpectedStatus is returned for a non-OK response from the API.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrEmptyCompletion is returned when the API answered without choices.
	ErrEmptyCompletion = errors.New("completion has no choices")
)

var httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

// PromptJSONSchema prompts the model and decodes its answer into T. The
// answer is constrained by the JSON schema reflected from T.
func PromptJSONSchema[T any](
	ctx context.Context,
	apiKey string,
	model string,
	prompt string,
	opts ...llms.StructuredPromptOption,
) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	options := llms.StructuredPromptOptions{BaseURL: url}
	for _, opt := range opts {
		opt(&options)
	}

	messages, err := toMessages(options.Instructions, options.Turns)
	if err != nil {
		return nil, fail(span, fmt.Errorf("error converting turns: %w", err))
	}
	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})

	reflector := jsonschema.Reflector{DoNotReference: true}
	outputType := reflect.TypeFor[T]()
	schema := reflector.ReflectFromType(outputType)

	reqBody := schemaRequestBody{
		Model:       model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		ResponseFormat: &ChatResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   outputType.Name(),
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", model))
	if schemaString, err := schema.MarshalJSON(); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schemaString)))
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fail(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, options.BaseURL, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fail(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return nil, fail(span, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	var responseBody schemaResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return nil, fail(span, fmt.Errorf("error decoding response body: %w", err))
	}
	if len(responseBody.Choices) == 0 {
		return nil, fail(span, ErrEmptyCompletion)
	}
	if usage := responseBody.Usage; usage != nil {
		span.SetAttributes(
			attribute.Int("response.prompt_tokens", usage.PromptTokens),
			attribute.Int("response.completion_tokens", usage.CompletionTokens),
		)
	}

	content := responseBody.Choices[0].Message.Content
	// Some models wrap the JSON in a markdown code fence.
	if split := strings.Split(content, "```"); len(split) > 1 {
		logger.DebugContext(ctx, "stripping code fence from structured response")
		content = strings.TrimPrefix(strings.TrimSpace(split[1]), "json")
	}

	var output T
	if err := json.Unmarshal([]byte(content), &output); err != nil {
		return nil, fail(span, fmt.Errorf("error unmarshalling response: %w", err))
	}

	return &output, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_completion_tokens,omitempty"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type ChatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	// Name identifies the schema in the response.
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Schema is the JSON schema the generated content has to follow.
	Schema jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}

type schemaResponseBody struct {
	Choices []struct {
		Message struct {
			Role         string  `json:"role,omitempty"`
			Content      string  `json:"content,omitempty"`
			Reasoning    string  `json:"reasoning,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		QueueTime        float64 `json:"queue_time"`
		PromptTokens     int     `json:"prompt_tokens"`
		PromptTime       float64 `json:"prompt_time"`
		CompletionTokens int     `json:"completion_tokens"`
		CompletionTime   float64 `json:"completion_time"`
		TotalTokens      int     `json:"total_tokens"`
		TotalTime        float64 `json:"total_time"`
	} `json:"usage"`
}
