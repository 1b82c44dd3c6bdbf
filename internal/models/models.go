package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleApplicant = "applicant"
	RoleRecruiter = "recruiter"
)

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Name         string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;not null;default:'applicant'"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Company struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:128;not null"`
	Description string `gorm:"type:text"`
	Website     string `gorm:"size:255"`
	Location    string `gorm:"size:128"`
	OwnerID     uint   `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type Job struct {
	ID          uint    `gorm:"primaryKey"`
	CompanyID   uint    `gorm:"index;not null"`
	Company     Company `gorm:"constraint:OnDelete:CASCADE"`
	PostedByID  uint    `gorm:"index;not null"`
	Title       string  `gorm:"size:200;not null"`
	Description string  `gorm:"type:text"`
	Location    string  `gorm:"size:128"`
	Salary      string  `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type Application struct {
	ID          uint   `gorm:"primaryKey"`
	JobID       uint   `gorm:"uniqueIndex:idx_app_job_applicant;not null"`
	Job         Job    `gorm:"constraint:OnDelete:CASCADE"`
	ApplicantID uint   `gorm:"uniqueIndex:idx_app_job_applicant;index;not null"`
	Applicant   User   `gorm:"foreignKey:ApplicantID"`
	Status      string `gorm:"size:16;not null;default:'pending'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Interview struct {
	ID            uint      `gorm:"primaryKey"`
	ApplicationID uint      `gorm:"index;not null"`
	ScheduledAt   time.Time `gorm:"index;not null"`
	Link          string    `gorm:"size:255"`
	Notes         string    `gorm:"type:text"`
	CreatedAt     time.Time
}

// Chat 是两名用户之间的一对一会话，UserAID 总是较小的用户 ID。
type Chat struct {
	ID              uint `gorm:"primaryKey"`
	UserAID         uint `gorm:"uniqueIndex:idx_chat_pair;not null"`
	UserBID         uint `gorm:"uniqueIndex:idx_chat_pair;index;not null"`
	LatestMessageID *uint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ChatMessage struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    uint   `gorm:"index:idx_chat_msg_chat_id;not null"`
	SenderID  uint   `gorm:"index;not null"`
	Sender    User   `gorm:"foreignKey:SenderID"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
