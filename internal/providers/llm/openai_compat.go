package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// OpenAICompat talks to any chat-completions endpoint that follows the OpenAI
// wire format (DashScope compatible mode, OpenRouter, OpenAI).
type OpenAICompat struct {
	client *resty.Client
	model  string
}

func NewOpenAICompat(baseURL, apiKey, model string, timeout time.Duration) *OpenAICompat {
	if model == "" {
		model = "qwen-plus"
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &OpenAICompat{client: c, model: model}
}

func (o *OpenAICompat) Name() string  { return "openai" }
func (o *OpenAICompat) Model() string { return o.model }
func (o *OpenAICompat) Close() error  { return nil }

func (o *OpenAICompat) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]map[string]string, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	body := map[string]any{
		"model":       o.model,
		"messages":    msgs,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		msg := gjson.Get(resp.String(), "error.message").String()
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode(), msg)
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}
