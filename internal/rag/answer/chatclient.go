package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"manifold/internal/llm"
)

// ChatClient is a minimal llm.Provider talking to an OpenAI-compatible
// /v1/chat/completions endpoint, grounded on internal/llm's
// FetchEmbeddings (raw net/http + json, no SDK) rather
// than the provider abstractions under internal/llm/*, which pull in
// config fields this module's settings surface does not carry.
type ChatClient struct {
	Host       string
	APIKey     string
	HTTPClient *http.Client
}

// NewChatClient builds a ChatClient pointed at host (an OpenAI-compatible
// chat completions base URL).
func NewChatClient(host, apiKey string) *ChatClient {
	return &ChatClient{Host: host, APIKey: apiKey, HTTPClient: &http.Client{}}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Chat(ctx context.Context, msgs []llm.Message, _ []llm.ToolSchema, model string) (llm.Message, error) {
	payload, err := json.Marshal(chatCompletionRequest{Model: model, Messages: toChatMessages(msgs)})
	if err != nil {
		return llm.Message{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return llm.Message{}, err
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return llm.Message{}, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode, string(body))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return llm.Message{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("chat completion returned no choices")
	}
	return llm.Message{Role: "assistant", Content: decoded.Choices[0].Message.Content}, nil
}

// ChatStream is a non-streaming fallback: it issues a normal completion and
// replays the full content as a single delta. A true token-by-token stream
// needs SSE parsing this minimal client does not implement.
func (c *ChatClient) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	msg, err := c.Chat(ctx, msgs, tools, model)
	if err != nil {
		return err
	}
	h.OnDelta(msg.Content)
	return nil
}

func (c *ChatClient) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return req, nil
}

func toChatMessages(msgs []llm.Message) []chatMessage {
	out := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

var _ llm.Provider = (*ChatClient)(nil)
