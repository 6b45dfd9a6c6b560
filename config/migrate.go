package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"gorm.io/gorm"
)

// defaultEmbeddingDim matches the vector(768) column tag on KnowledgeBase.
const defaultEmbeddingDim = 768

func tables() []any {
	return []any{
		&models.User{},
		&models.Task{},
		&models.TaskNote{},
		&models.TaskHighlight{},
		&models.Interview{},
		&models.Resume{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.UserPreference{},
		&models.UserFeedback{},
		&models.KnowledgeBase{},
		&models.TitleBenefit{},
	}
}

// invariantStatements back row invariants with constraints AutoMigrate cannot
// express. Each statement is idempotent.
func invariantStatements() []string {
	return []string{
		// keep only the newest active résumé per user before indexing
		`UPDATE resumes r SET is_active = 0
		 WHERE r.is_active = 1
		   AND EXISTS (SELECT 1 FROM resumes n WHERE n.user_id = r.user_id AND n.is_active = 1 AND n.id > r.id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_resumes_one_active ON resumes (user_id) WHERE is_active = 1`,
	}
}

// Migrate enables pgvector and brings every table up to date. The embedding
// column is resized when embeddingDim differs from the model tag.
func Migrate(ctx context.Context, db *gorm.DB, embeddingDim int, log *logrus.Logger) error {
	tx := db.WithContext(ctx)

	if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := tx.AutoMigrate(tables()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range invariantStatements() {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}

	if embeddingDim > 0 && embeddingDim != defaultEmbeddingDim {
		stmt := fmt.Sprintf("ALTER TABLE knowledge_base ALTER COLUMN embedding TYPE vector(%d)", embeddingDim)
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("resize embedding column: %w", err)
		}
		log.WithField("dimension", embeddingDim).Info("knowledge embedding column resized")
	}
	return nil
}
