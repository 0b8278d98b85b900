package store

import (
	"context"

	"gorm.io/gorm"
)

type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Record remembers a created task for later "last task" commands.
func (s *TaskStore) Record(ctx context.Context, telegramID int64, todoistID, content string) error {
	ref := TaskRef{TelegramID: telegramID, TodoistID: todoistID, Content: content}
	return s.db.WithContext(ctx).Create(&ref).Error
}

// Last returns the newest task reference for the user. gorm.ErrRecordNotFound
// when the user has not created anything yet.
func (s *TaskStore) Last(ctx context.Context, telegramID int64) (TaskRef, error) {
	var ref TaskRef
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at DESC, id DESC").
		First(&ref).Error
	return ref, err
}

// Recent lists the newest n references, newest first.
func (s *TaskStore) Recent(ctx context.Context, telegramID int64, n int) ([]TaskRef, error) {
	var refs []TaskRef
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&refs).Error
	return refs, err
}

// Forget drops a reference after the remote task is deleted.
func (s *TaskStore) Forget(ctx context.Context, telegramID int64, todoistID string) error {
	return s.db.WithContext(ctx).
		Where("telegram_id = ? AND todoist_id = ?", telegramID, todoistID).
		Delete(&TaskRef{}).Error
}
