package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/llm-gateway/internal/domain"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// openaiClient adapts the official OpenAI SDK to the vendorClient surface.
type openaiClient struct {
	client openai.Client
}

func newOpenAIClient(apiKey string, timeout time.Duration) *openaiClient {
	return &openaiClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

func (c *openaiClient) complete(ctx context.Context, req *domain.Request, system string, jsonMode bool) (*completion, error) {
	params := c.buildParams(req, system, jsonMode)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError("openai_complete", err)
	}

	if len(resp.Choices) == 0 {
		return nil, domain.WrapError("openai_complete", domain.KindUpstream,
			fmt.Errorf("%w: no completions returned", domain.ErrUpstream), false)
	}

	return &completion{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (c *openaiClient) stream(ctx context.Context, req *domain.Request, system string, jsonMode bool) (<-chan Chunk, error) {
	params := c.buildParams(req, system, jsonMode)

	respStream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := respStream.Err(); err != nil {
		_ = respStream.Close()
		return nil, classifyOpenAIError("openai_stream", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer respStream.Close()

		for respStream.Next() {
			chunk := respStream.Current()
			for _, choice := range chunk.Choices {
				if content := choice.Delta.Content; content != "" {
					select {
					case out <- Chunk{Text: content}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := respStream.Err(); err != nil {
			select {
			case out <- Chunk{Err: classifyOpenAIError("openai_stream", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (c *openaiClient) healthCheck(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return classifyOpenAIError("openai_health", err)
	}
	return nil
}

func (c *openaiClient) buildParams(req *domain.Request, system string, jsonMode bool) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion

	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			switch m.Role {
			case "assistant":
				messages = append(messages, openai.AssistantMessage(m.Content))
			case "system":
				messages = append(messages, openai.SystemMessage(m.Content))
			default:
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	} else if req.Prompt != "" {
		messages = append(messages, openai.UserMessage(req.Prompt))
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}

func classifyOpenAIError(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return wrapStatusError(op, apierr.StatusCode, err)
	}
	return wrapTransportError(op, err)
}
