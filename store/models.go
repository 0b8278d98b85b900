package store

import "time"

// User is one Telegram account that talked to the bot. TodoistToken is
// a secretbox ciphertext; it never touches the database in the clear.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	TelegramID   int64  `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"size:64"`
	Language     string `gorm:"size:8"`
	TodoistToken []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskRef remembers a task the bot created so the "last task" commands
// can resolve their target locally.
type TaskRef struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID int64  `gorm:"index;not null"`
	TodoistID  string `gorm:"size:64;not null"`
	Content    string `gorm:"size:512"`
	CreatedAt  time.Time
}
