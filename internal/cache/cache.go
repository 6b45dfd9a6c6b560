package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPattern(ctx context.Context, pattern string) error
}

const prefix = "xiaomian:"

// KnowledgeKey addresses a cached knowledge-base search result.
func KnowledgeKey(positionCategory string, topK int) string {
	if positionCategory == "" {
		positionCategory = "_all"
	}
	return fmt.Sprintf("%skb:%s:%d", prefix, strings.ToLower(positionCategory), topK)
}

// KnowledgePattern matches every cached knowledge-base search.
func KnowledgePattern() string { return prefix + "kb:*" }

func TitleBenefitsKey() string { return prefix + "title_benefits" }

// Nop never hits. Used when no Redis address is configured.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Del(context.Context, ...string) error                      { return nil }
func (Nop) DelPattern(context.Context, string) error                  { return nil }
