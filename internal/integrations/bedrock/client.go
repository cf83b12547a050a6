// Package bedrock is a focused client for Bedrock text completions using the
// Anthropic prompt/completion envelope.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"assistant-agent/internal/domain"
)

const (
	DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

	maxTokensToSample = 1000
	temperature       = 0.7
	topP              = 0.9
)

// ErrMissingCompletion indicates a well-formed response without the expected
// completion field. Callers substitute their own fallback text.
var ErrMissingCompletion = errors.New("bedrock: response missing completion")

// invokeRequest is the Anthropic text-completion request envelope.
type invokeRequest struct {
	Prompt            string  `json:"prompt"`
	MaxTokensToSample int     `json:"max_tokens_to_sample"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
}

// invokeResponse is the minimal response envelope.
type invokeResponse struct {
	Completion *string `json:"completion"`
}

// runtimeAPI is the minimal Bedrock runtime interface required by Client.
// *bedrockruntime.Client satisfies it.
type runtimeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes a hosted model with fixed generation parameters.
type Client struct {
	api     runtimeAPI
	modelID string
}

// NewClient creates a Client for the given model id; an empty id selects
// DefaultModelID.
func NewClient(api runtimeAPI, modelID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Client{api: api, modelID: modelID}, nil
}

// Complete renders messages into the Human/Assistant transcript format,
// invokes the model, and returns the completion text.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("bedrock: no messages")
	}

	body, err := json.Marshal(invokeRequest{
		Prompt:            renderPrompt(messages),
		MaxTokensToSample: maxTokensToSample,
		Temperature:       temperature,
		TopP:              topP,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoke model: %w", err)
	}

	var payload invokeResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	if payload.Completion == nil {
		return "", ErrMissingCompletion
	}
	return strings.TrimSpace(*payload.Completion), nil
}

// renderPrompt flattens role-tagged messages into the model's native
// transcript. System content leads the prompt; the transcript always ends
// with an open Assistant turn.
func renderPrompt(messages []domain.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "system":
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		case "assistant":
			b.WriteString("\n\nAssistant: ")
			b.WriteString(m.Content)
		default:
			b.WriteString("\n\nHuman: ")
			b.WriteString(m.Content)
		}
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}
