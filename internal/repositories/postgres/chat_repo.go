package postgres

import (
	"context"
	"time"

	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/gorm"
)

type ChatRepository interface {
	LatestSession(ctx context.Context, userID uint, contextType models.ContextType) (*models.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, s *models.ChatSession) error
	ListSessions(ctx context.Context, userID uint, contextType models.ContextType) ([]models.ChatSession, error)
	RenameSession(ctx context.Context, userID uint, sessionID, name string) error

	// AppendMessages inserts msgs and bumps the session's updated_at to now.
	AppendMessages(ctx context.Context, sessionID string, now time.Time, msgs ...*models.ChatMessage) error
	// RecentMessages returns the last n messages of a session, oldest first.
	RecentMessages(ctx context.Context, sessionID string, n int) ([]models.ChatMessage, error)
	RecentUserMessages(ctx context.Context, userID uint, n int) ([]models.ChatMessage, error)
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepo(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) LatestSession(ctx context.Context, userID uint, contextType models.ContextType) (*models.ChatSession, error) {
	var s models.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND context_type = ?", userID, contextType).
		Order("updated_at DESC").
		Take(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *chatRepo) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var s models.ChatSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *chatRepo) CreateSession(ctx context.Context, s *models.ChatSession) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *chatRepo) ListSessions(ctx context.Context, userID uint, contextType models.ContextType) ([]models.ChatSession, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if contextType != "" {
		q = q.Where("context_type = ?", contextType)
	}
	var rows []models.ChatSession
	err := q.Order("updated_at DESC").Find(&rows).Error
	return rows, err
}

func (r *chatRepo) RenameSession(ctx context.Context, userID uint, sessionID, name string) error {
	res := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Update("summary", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *chatRepo) AppendMessages(ctx context.Context, sessionID string, now time.Time, msgs ...*models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range msgs {
			m.SessionID = sessionID
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.ChatSession{}).
			Where("session_id = ?", sessionID).
			UpdateColumn("updated_at", now).Error
	})
}

func (r *chatRepo) RecentMessages(ctx context.Context, sessionID string, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		n = 20
	}
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *chatRepo) RecentUserMessages(ctx context.Context, userID uint, n int) ([]models.ChatMessage, error) {
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, models.MessageRoleUser).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}
