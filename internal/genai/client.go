// Package genai wraps the Gemini API behind a narrow interface so the rest of
// the system can be tested against a fake model.
package genai

import (
	"context"
	"fmt"
	"log"

	gemini "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/config"
)

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateSQL asks the model for a single SQL statement answering the
	// prompt. The returned text is raw model output; callers are responsible
	// for cleaning and validating it before use.
	GenerateSQL(ctx context.Context, prompt string) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// geminiClient implements the LLMClient interface using the Google Gemini API.
type geminiClient struct {
	client *gemini.Client
	cfg    config.GenAIConfig
}

var _ LLMClient = (*geminiClient)(nil)

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg config.GenAIConfig) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}

	client, err := gemini.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
		log.Printf("INFO: Gemini model not specified, defaulting to %s", cfg.Model)
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next()
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == 16 /* UNAUTHENTICATED */ || st.Code() == 7 /* PERMISSION_DENIED */ {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// GenerateSQL calls the model with a low temperature; SQL generation wants
// determinism, not creativity.
func (c *geminiClient) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", &ErrInvalidInput{Msg: "gemini client not initialized"}
	}
	if prompt == "" {
		return "", &ErrInvalidInput{Msg: "prompt is empty"}
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(1024)
	model.SetTopP(0.9)
	model.SetTopK(40)

	resp, err := model.GenerateContent(ctx, gemini.Text(prompt))
	if err != nil {
		if ctx.Err() != nil {
			return "", &ErrCancelled{Msg: "model call cancelled", Err: ctx.Err()}
		}
		return "", &ErrGeneration{Msg: "Gemini API call failed", Err: err}
	}

	text, err := getFirstTextPart(resp)
	if err != nil {
		return "", &ErrGeneration{Msg: "unusable model response", Err: err}
	}
	return text, nil
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *gemini.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s", finishReason)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(gemini.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}
