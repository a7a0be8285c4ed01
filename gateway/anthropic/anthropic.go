// Package anthropic implements gateway.Gateway on the Anthropic Messages
// API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/internal/util"
)

// Options configure the Anthropic gateway adapter (model id, temperature,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Gateway wraps the Anthropic Messages API behind gateway.Gateway.
type Gateway struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic gateway from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// GenerateStructured implements gateway.Gateway.
func (g *Gateway) GenerateStructured(ctx context.Context, req gateway.StructuredRequest) (json.RawMessage, error) {
	prompt := req.Prompt
	if req.SchemaHint != "" {
		prompt += "\n\n" + req.SchemaHint
	}
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}

	text, err := g.complete(ctx, "generate_structured", req.System, messages, req.MaxTokens)
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
	var messages []anthropic.MessageParam
	for i, t := range req.Turns {
		switch t.Role {
		case gateway.TurnAssistant:
			// The Messages API requires the transcript to open with a user
			// turn; transcripts that begin with the answering identity get a
			// synthetic opener.
			if i == 0 {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("(The conversation begins.)")))
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	return g.complete(ctx, "generate_reply", req.System, messages, req.MaxTokens)
}

func (g *Gateway) complete(
	ctx context.Context,
	op, system string,
	messages []anthropic.MessageParam,
	maxTokens int64,
) (string, error) {
	if maxTokens <= 0 {
		maxTokens = g.opts.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(op, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", &core.GatewayError{Op: op, Retryable: true, Err: fmt.Errorf("empty response content")}
	}
	return b.String(), nil
}

// classify maps SDK failures onto the engine's retry taxonomy.
func classify(op string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		retryable := apierr.StatusCode == 408 || apierr.StatusCode == 429 || apierr.StatusCode >= 500
		return &core.GatewayError{Op: op, Retryable: retryable, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &core.GatewayError{Op: op, Retryable: false, Err: err}
	}
	return &core.GatewayError{Op: op, Retryable: true, Err: err}
}
