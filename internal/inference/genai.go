package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// GenAITransport calls generateContent through the Google GenAI SDK.
type GenAITransport struct {
	client *genai.Client
	model  string
}

func NewGenAITransport(ctx context.Context, apiKey, model string) (*GenAITransport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAITransport{client: client, model: model}, nil
}

func (t *GenAITransport) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := t.client.Models.GenerateContent(ctx, t.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}
	content := res.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", fmt.Errorf("%w: candidate has no parts", ErrEmptyResponse)
	}
	return content.Parts[0].Text, nil
}
