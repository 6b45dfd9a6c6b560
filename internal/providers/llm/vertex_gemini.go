package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Name() string  { return "vertex" }
func (v *VertexGemini) Model() string { return v.modelName }
func (v *VertexGemini) Close() error  { return v.client.Close() }

// Complete replays the history into a chat session and drains the streamed
// answer of the final user turn.
func (v *VertexGemini) Complete(ctx context.Context, req Request) (string, error) {
	// per-call model so temperature and system prompt don't leak across requests
	m := v.client.GenerativeModel(v.modelName)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(req.System)}}
	}

	cs := m.StartChat()
	last := len(req.Messages) - 1
	for i, msg := range req.Messages {
		if i == last {
			break
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
		})
	}

	var prompt string
	if last >= 0 {
		prompt = req.Messages[last].Content
	}

	var sb strings.Builder
	it := cs.SendMessageStream(ctx, vertexgenai.Text(prompt))
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyAnswer
	}
	return sb.String(), nil
}
