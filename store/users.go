package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoToken means the user never completed /setup.
var ErrNoToken = errors.New("store: no todoist token on file")

type UserStore struct {
	db     *gorm.DB
	cipher *Cipher
}

func NewUserStore(db *gorm.DB, cipher *Cipher) *UserStore {
	return &UserStore{db: db, cipher: cipher}
}

// Upsert creates the user on first contact and refreshes the username
// on every later one. The token and language survive the upsert.
func (s *UserStore) Upsert(ctx context.Context, telegramID int64, username string) (User, error) {
	user := User{TelegramID: telegramID, Username: username}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
		}).
		Create(&user).Error
	if err != nil {
		return User{}, err
	}
	return s.ByTelegramID(ctx, telegramID)
}

func (s *UserStore) ByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	return user, err
}

// SetToken encrypts and stores the Todoist token.
func (s *UserStore) SetToken(ctx context.Context, telegramID int64, token string) error {
	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("telegram_id = ?", telegramID).
		Update("todoist_token", sealed).Error
}

// Token decrypts the stored Todoist token.
func (s *UserStore) Token(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.ByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if len(user.TodoistToken) == 0 {
		return "", ErrNoToken
	}
	return s.cipher.Open(user.TodoistToken)
}

// ClearToken drops the stored token, used when Todoist reports it
// invalid.
func (s *UserStore) ClearToken(ctx context.Context, telegramID int64) error {
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("telegram_id = ?", telegramID).
		Update("todoist_token", nil).Error
}

func (s *UserStore) SetLanguage(ctx context.Context, telegramID int64, lang string) error {
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("telegram_id = ?", telegramID).
		Update("language", lang).Error
}
