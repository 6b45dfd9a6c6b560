package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one chat completion. System may be empty.
type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Prompt builds a single-turn request.
func Prompt(system, user string, temperature float32, maxTokens int) Request {
	return Request{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: user}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// LastUser returns the content of the final user message.
func (r Request) LastUser() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

var ErrEmptyAnswer = errors.New("llm: empty answer")

type Provider interface {
	// Complete blocks until the whole answer is available.
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
	Close() error
}
