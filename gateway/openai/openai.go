// Package openai implements gateway.Gateway on the OpenAI Chat Completions
// API. It maps the engine's structured/conversational requests into chat
// messages and classifies API failures for the retry layer.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/internal/util"
)

// Options configure the OpenAI gateway adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Gateway wraps the OpenAI Chat Completions API behind gateway.Gateway.
type Gateway struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI gateway using the official client, which reads
// OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Gateway {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// GenerateStructured implements gateway.Gateway. The schema hint is appended
// to the prompt and the reply is reduced to its embedded JSON value.
func (g *Gateway) GenerateStructured(ctx context.Context, req gateway.StructuredRequest) (json.RawMessage, error) {
	prompt := req.Prompt
	if req.SchemaHint != "" {
		prompt += "\n\n" + req.SchemaHint
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	text, err := g.complete(ctx, "generate_structured", messages, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	raw, ok := util.ExtractJSON(text)
	if !ok {
		return nil, &core.GatewayError{
			Op:        "generate_structured",
			Retryable: false,
			Err:       gateway.ErrNoJSON,
		}
	}
	return json.RawMessage(raw), nil
}

// GenerateReply implements gateway.Gateway.
func (g *Gateway) GenerateReply(ctx context.Context, req gateway.ReplyRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		switch t.Role {
		case gateway.TurnAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	return g.complete(ctx, "generate_reply", messages, req.MaxTokens)
}

func (g *Gateway) complete(
	ctx context.Context,
	op string,
	messages []openai.ChatCompletionMessageParamUnion,
	maxTokens int64,
) (string, error) {
	if maxTokens <= 0 {
		maxTokens = g.opts.MaxCompletionTokens
	}
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", &core.GatewayError{Op: op, Retryable: true, Err: fmt.Errorf("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps SDK failures onto the engine's retry taxonomy: rate limits,
// timeouts and transient 5xx are retryable; malformed requests and auth
// failures are not. Non-API transport failures are assumed transient.
func classify(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		retryable := apierr.StatusCode == 408 || apierr.StatusCode == 429 || apierr.StatusCode >= 500
		return &core.GatewayError{Op: op, Retryable: retryable, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &core.GatewayError{Op: op, Retryable: false, Err: err}
	}
	return &core.GatewayError{Op: op, Retryable: true, Err: err}
}
