package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/llm-gateway/internal/domain"
)

// anthropicClient adapts the official Anthropic SDK to the vendorClient
// surface. Anthropic has no native JSON mode; enforcement relies entirely
// on the prompt tiers, so the jsonMode flag is ignored here.
type anthropicClient struct {
	client anthropic.Client
}

func newAnthropicClient(apiKey string, timeout time.Duration) *anthropicClient {
	return &anthropicClient{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

func (c *anthropicClient) complete(ctx context.Context, req *domain.Request, system string, _ bool) (*completion, error) {
	params := c.buildParams(req, system)

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError("anthropic_complete", err)
	}

	var text string
	for _, content := range message.Content {
		if content.Type == "text" {
			text = content.Text
			break
		}
	}

	if text == "" {
		return nil, domain.WrapError("anthropic_complete", domain.KindUpstream,
			fmt.Errorf("%w: no text content returned", domain.ErrUpstream), false)
	}

	return &completion{
		Text: text,
		Usage: domain.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}

func (c *anthropicClient) stream(ctx context.Context, req *domain.Request, system string, _ bool) (<-chan Chunk, error) {
	params := c.buildParams(req, system)

	respStream := c.client.Messages.NewStreaming(ctx, params)
	if err := respStream.Err(); err != nil {
		_ = respStream.Close()
		return nil, classifyAnthropicError("anthropic_stream", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer respStream.Close()

		for respStream.Next() {
			event := respStream.Current()
			if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				select {
				case out <- Chunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := respStream.Err(); err != nil {
			select {
			case out <- Chunk{Err: classifyAnthropicError("anthropic_stream", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (c *anthropicClient) healthCheck(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return classifyAnthropicError("anthropic_health", err)
	}
	return nil
}

func (c *anthropicClient) buildParams(req *domain.Request, system string) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam

	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			switch m.Role {
			case "assistant":
				messages = append(messages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(m.Content),
				))
			case "system":
				// Anthropic carries system text out of band.
				if system == "" {
					system = m.Content
				} else {
					system += "\n\n" + m.Content
				}
			default:
				messages = append(messages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(m.Content),
				))
			}
		}
	} else if req.Prompt != "" {
		messages = append(messages, anthropic.NewUserMessage(
			anthropic.NewTextBlock(req.Prompt),
		))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system, Type: "text"},
		}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	return params
}

func classifyAnthropicError(op string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return wrapStatusError(op, apierr.StatusCode, err)
	}
	return wrapTransportError(op, err)
}
