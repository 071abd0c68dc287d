package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user_not_found")
	ErrInvalidToken = errors.New("invalid_token")
	ErrInvalidEmail = errors.New("invalid_email")
)

// User is an account that owns projects and an individual credit ledger.
type User struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Email       string       `json:"email" gorm:"uniqueIndex"`
	DisplayName string       `json:"display_name"`
	APIToken    string       `json:"-" gorm:"uniqueIndex"`
	IsAdmin     bool         `json:"is_admin"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*User, error)
}

type Service interface {
	Register(ctx context.Context, email, displayName string) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
	Authenticate(ctx context.Context, token string) (*User, error)
}
