package models

import (
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/angelmondragon/packfinderz-identity/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the canonical identity entity.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash  string         `gorm:"column:password_hash;not null" json:"-"`
	Role          enums.UserRole `gorm:"column:role;type:text;not null" json:"role"`
	EmailVerified bool           `gorm:"column:email_verified;not null;default:false" json:"email_verified"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserProfile is the optional 1:1 extension of a user.
type UserProfile struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	FirstName   *string         `gorm:"column:first_name" json:"first_name"`
	LastName    *string         `gorm:"column:last_name" json:"last_name"`
	CompanyName *string         `gorm:"column:company_name" json:"company_name"`
	Phone       *string         `gorm:"column:phone" json:"phone"`
	Address     *types.Address  `gorm:"column:address;type:jsonb" json:"address"`
	KYCStatus   enums.KYCStatus `gorm:"column:kyc_status;type:text;not null;default:'pending'" json:"kyc_status"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
