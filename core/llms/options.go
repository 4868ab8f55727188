package llms

type StructuredPromptOptions struct {
	Instructions string
	Turns        []Turn
	Temperature  *float64
	MaxTokens    int
	// BaseURL overrides the provider's chat completions endpoint.
	BaseURL string
}

type StructuredPromptOption func(*StructuredPromptOptions)

// WithSystemPrompt sets the instructions sent before the conversation.
// Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.Instructions = prompt
	}
}

// WithTurns adds earlier conversation turns as context for the prompt.
func WithTurns(turns ...Turn) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.Turns = append(opts.Turns, turns...)
	}
}

func WithTemperature(temperature float64) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.Temperature = &temperature
	}
}

func WithMaxTokens(maxTokens int) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.MaxTokens = maxTokens
	}
}

func WithBaseURL(url string) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.BaseURL = url
	}
}
