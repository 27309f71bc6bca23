package users

import (
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/angelmondragon/packfinderz-identity/pkg/pagination"
	"github.com/angelmondragon/packfinderz-identity/pkg/types"
	"github.com/google/uuid"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Role          enums.UserRole `json:"role"`
	EmailVerified bool           `json:"email_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Profile       *ProfileDTO    `json:"profile,omitempty"`
}

type ProfileDTO struct {
	FirstName   *string         `json:"first_name"`
	LastName    *string         `json:"last_name"`
	CompanyName *string         `json:"company_name"`
	Phone       *string         `json:"phone"`
	Address     *types.Address  `json:"address"`
	KYCStatus   enums.KYCStatus `json:"kyc_status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UserList is one page of users.
type UserList struct {
	Users      []UserDTO       `json:"users"`
	Pagination pagination.Meta `json:"pagination"`
}

// Stats summarizes the user base.
type Stats struct {
	Total      int64                    `json:"total"`
	ByRole     map[enums.UserRole]int64 `json:"by_role"`
	Verified   int64                    `json:"verified"`
	Unverified int64                    `json:"unverified"`
}

// UserWithProfile is a user joined with its optional profile.
type UserWithProfile struct {
	models.User
	Profile *models.UserProfile
}

// CreateUserInput is everything registration persists.
type CreateUserInput struct {
	Email    string
	Password string
	Role     enums.UserRole
	Profile  *ProfileInput
}

// ProfileInput carries profile fields supplied at registration.
type ProfileInput struct {
	FirstName   *string        `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string        `json:"last_name,omitempty" validate:"omitempty,max=100"`
	CompanyName *string        `json:"company_name,omitempty" validate:"omitempty,max=200"`
	Phone       *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address     *types.Address `json:"address,omitempty"`
}

// UserUpdate lists user columns a caller may change. Nil means untouched.
type UserUpdate struct {
	Email         *string         `json:"email,omitempty"`
	Role          *enums.UserRole `json:"role,omitempty"`
	EmailVerified *bool           `json:"email_verified,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.Role == nil && u.EmailVerified == nil
}

// ProfileUpdate is a partial profile change. An absent field is untouched, an explicit null clears it.
type ProfileUpdate struct {
	FirstName   types.Optional[string]          `json:"first_name"`
	LastName    types.Optional[string]          `json:"last_name"`
	CompanyName types.Optional[string]          `json:"company_name"`
	Phone       types.Optional[string]          `json:"phone"`
	Address     types.Optional[types.Address]   `json:"address"`
	KYCStatus   types.Optional[enums.KYCStatus] `json:"kyc_status"`
}

// IsEmpty reports whether no field was supplied.
func (p ProfileUpdate) IsEmpty() bool {
	return len(p.columns()) == 0
}

func (p ProfileUpdate) columns() map[string]any {
	out := map[string]any{}
	for column, field := range map[string]types.Optional[string]{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"company_name": p.CompanyName,
		"phone":        p.Phone,
	} {
		if field.Set {
			out[column] = field.Ptr()
		}
	}
	if p.Address.Set {
		out["address"] = p.Address.Ptr()
	}
	if p.KYCStatus.Set {
		out["kyc_status"] = p.KYCStatus.Value
	}
	return out
}

func NewUserDTO(u models.User) UserDTO {
	return UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// FromModel converts a user, returning nil for nil.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := NewUserDTO(*u)
	return &dto
}

// FromJoined converts a user with its profile.
func FromJoined(u *UserWithProfile) *UserDTO {
	if u == nil {
		return nil
	}
	dto := NewUserDTO(u.User)
	if p := u.Profile; p != nil {
		dto.Profile = &ProfileDTO{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			CompanyName: p.CompanyName,
			Phone:       p.Phone,
			Address:     p.Address,
			KYCStatus:   p.KYCStatus,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}
	}
	return &dto
}

func (in *ProfileInput) toModel(userID uuid.UUID) *models.UserProfile {
	return &models.UserProfile{
		UserID:      userID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Phone:       in.Phone,
		Address:     in.Address,
		KYCStatus:   enums.KYCStatusPending,
	}
}
