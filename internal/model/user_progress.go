package model

import "time"

// 以下为 database 后端的进度存储表，一行一个字段，upsert 只触及自身行

// swagger:model UserUnlockedLevel
type UserUnlockedLevel struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	Role      string    `gorm:"primaryKey;size:16" json:"role"`
	Level     int       `gorm:"not null;default:1" json:"level"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserUnlockedLevel) TableName() string {
	return "user_unlocked_levels"
}

// swagger:model UserLastAttempt
type UserLastAttempt struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"userId"`
	Role        string    `gorm:"size:16" json:"role"`
	Level       int       `json:"level"`
	Score       int       `json:"score"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (UserLastAttempt) TableName() string {
	return "user_last_attempts"
}

func (a *UserLastAttempt) Attempt() QuizAttempt {
	return QuizAttempt{
		Role:      Role(a.Role),
		Level:     a.Level,
		Score:     a.Score,
		Passed:    a.Passed,
		Timestamp: a.CompletedAt,
	}
}

// swagger:model UserProfile
type UserProfile struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	Email     string    `gorm:"size:255" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	Points    int64     `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
