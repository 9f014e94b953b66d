package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient calls the OpenAI chat completions API with multimodal
// content. Images travel as base64 data URLs inside the grounding message.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type openaiTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openaiImagePart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []part for multimodal
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []openaiMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one completion request. The grounding message (document
// text plus image parts) always precedes the history so every turn is
// answered against the full document.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openaiMessage, 0, len(req.History)+3)
	messages = append(messages, openaiMessage{Role: "system", Content: req.System})

	grounding := []any{
		openaiTextPart{Type: "text", Text: "Document contents:\n\n" + req.Context},
	}
	for _, img := range req.Images {
		part := openaiImagePart{Type: "image_url"}
		part.ImageURL.URL = fmt.Sprintf("data:%s;base64,%s",
			img.MIMEType(), base64.StdEncoding.EncodeToString(img.Data))
		grounding = append(grounding, part)
	}
	messages = append(messages, openaiMessage{Role: "user", Content: grounding})

	for _, m := range req.History {
		messages = append(messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Question})

	body, err := json.Marshal(openaiRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages:    messages,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Message: "marshal request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Kind:    kindFromStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: truncate(string(respBody), 300),
		}
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if apiResp.Error != nil {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode,
			Message: apiResp.Error.Type + ": " + apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "empty completion"}
	}

	return apiResp.Choices[0].Message.Content, nil
}

// Close releases idle connections.
func (c *OpenAIClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
