package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/llm-gateway/internal/domain"
	"google.golang.org/genai"
)

// geminiClient adapts the google genai SDK to the vendorClient surface.
type geminiClient struct {
	client *genai.Client
}

func newGeminiClient(apiKey string) (*geminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiClient{client: client}, nil
}

func (c *geminiClient) complete(ctx context.Context, req *domain.Request, system string, jsonMode bool) (*completion, error) {
	contents, cfg := c.buildCall(req, system, jsonMode)

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError("gemini_complete", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, domain.WrapError("gemini_complete", domain.KindUpstream,
			fmt.Errorf("%w: no completions returned", domain.ErrUpstream), false)
	}

	comp := &completion{Text: text}
	if resp.UsageMetadata != nil {
		comp.Usage = domain.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return comp, nil
}

func (c *geminiClient) stream(ctx context.Context, req *domain.Request, system string, jsonMode bool) (<-chan Chunk, error) {
	contents, cfg := c.buildCall(req, system, jsonMode)

	out := make(chan Chunk)
	go func() {
		defer close(out)

		var usage *domain.Usage
		for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				select {
				case out <- Chunk{Err: classifyGeminiError("gemini_stream", err)}:
				case <-ctx.Done():
				}
				return
			}

			if resp.UsageMetadata != nil {
				usage = &domain.Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}

			if text := resp.Text(); text != "" {
				select {
				case out <- Chunk{Text: text}:
				case <-ctx.Done():
					return
				}
			}
		}

		if usage != nil {
			select {
			case out <- Chunk{Usage: usage}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (c *geminiClient) healthCheck(ctx context.Context) error {
	// The genai client validates its configuration at construction; a
	// deeper reachability probe would burn quota on every readiness poll.
	if c.client == nil {
		return domain.ErrMissingCredential
	}
	return nil
}

func (c *geminiClient) buildCall(req *domain.Request, system string, jsonMode bool) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content

	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	} else if req.Prompt != "" {
		contents = genai.Text(req.Prompt)
	}

	cfg := &genai.GenerateContentConfig{}

	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Role:  "system",
			Parts: []*genai.Part{{Text: system}},
		}
	}

	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	return contents, cfg
}

func classifyGeminiError(op string, err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return wrapStatusError(op, apierr.Code, err)
	}
	return wrapTransportError(op, err)
}
