package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// GeminiClient binds Complete to the Gemini API through the genai SDK.
// Stateless like the OpenAI binding: the full grounding and history are
// resent on every call rather than holding a server-side chat.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: KindAuth, Message: "create gemini client: " + err.Error()}
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{
		{Text: "Document contents:\n\n" + req.Context},
	}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MIMEType(), Data: img.Data},
		})
	}

	contents := make([]*genai.Content, 0, len(req.History)+2)
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
	for _, m := range req.History {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Question}},
	})

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       genai.Ptr[float32](0.3),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", mapGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Kind: KindMalformed, Message: "no candidates in response"}
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", &Error{Kind: KindMalformed, Message: "empty candidate text"}
	}
	return text, nil
}

func (c *GeminiClient) Close() {}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:    kindFromStatus(apiErr.Code),
			Status:  apiErr.Code,
			Message: apiErr.Message,
		}
	}
	return &Error{Kind: KindNetwork, Message: err.Error()}
}
