package cache

import (
	"context"
	"strings"
	"testing"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"category lowered", KnowledgeKey("Java开发工程师", 5), "xiaomian:kb:java开发工程师:5"},
		{"empty category", KnowledgeKey("", 3), "xiaomian:kb:_all:3"},
		{"titles", TitleBenefitsKey(), "xiaomian:title_benefits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
	if !strings.HasPrefix(KnowledgeKey("x", 1), strings.TrimSuffix(KnowledgePattern(), "*")) {
		t.Fatal("pattern does not cover knowledge keys")
	}
}

func TestNopNeverHits(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	if err := c.SetJSON(ctx, "k", map[string]int{"a": 1}, 0); err != nil {
		t.Fatal(err)
	}
	var dst map[string]int
	hit, err := c.GetJSON(ctx, "k", &dst)
	if hit || err != nil {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
}
