package mongo

import (
	"context"
	"time"

	"github.com/yoockh/xiaomian/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

const llmCallsCollection = "llm_calls"

// LLMCallRetention is how long audit documents live before the TTL index
// removes them.
const LLMCallRetention = 30 * 24 * time.Hour

type LLMCallRepository interface {
	Insert(ctx context.Context, c *models.LLMCall) error
}

type llmCallRepo struct {
	col *mongo.Collection
}

func NewLLMCallRepo(db *mongo.Database) LLMCallRepository {
	return &llmCallRepo{col: db.Collection(llmCallsCollection)}
}

func (r *llmCallRepo) Insert(ctx context.Context, c *models.LLMCall) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = c.CreatedAt.Add(LLMCallRetention)
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}
