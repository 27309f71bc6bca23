package users

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/pagination"
	"github.com/google/uuid"
)

// listCapPerRole bounds how many users per role an unfiltered listing loads.
const listCapPerRole = 10000

// Actor is the authenticated caller of a user operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == enums.UserRoleAdmin }

// Service exposes user and profile management to controllers.
type Service interface {
	GetUser(ctx context.Context, id string) (*UserDTO, error)
	GetUserWithProfile(ctx context.Context, id string) (*UserDTO, error)
	UpdateUser(ctx context.Context, actor Actor, id string, update UserUpdate) (*UserDTO, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*UserDTO, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, role *enums.UserRole, page pagination.Params) (*UserList, error)
	SearchUsers(ctx context.Context, query string, page pagination.Params) (*UserList, error)
	VerifyEmail(ctx context.Context, id string) (*UserDTO, error)
	GetStats(ctx context.Context) (Stats, error)
}

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindWithProfile(ctx context.Context, id string) (*UserWithProfile, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error
	Delete(ctx context.Context, id string) (bool, error)
	FindByRole(ctx context.Context, role enums.UserRole, limit, offset int) ([]models.User, error)
	CountByRole(ctx context.Context, role enums.UserRole) (int64, error)
	Search(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error)
	VerifyEmail(ctx context.Context, userID string) (*models.User, error)
	GetUserStats(ctx context.Context) (Stats, error)
}

type service struct {
	store userStore
}

// NewService constructs the user service over the identity store.
func NewService(store userStore) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("user store is required")
	}
	return &service{store: store}, nil
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (s *service) GetUser(ctx context.Context, id string) (*UserDTO, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound()
	}
	return FromModel(user), nil
}

func (s *service) GetUserWithProfile(ctx context.Context, id string) (*UserDTO, error) {
	user, err := s.store.FindWithProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound()
	}
	return FromJoined(user), nil
}

// UpdateUser lets owners change their email only; role and verification are admin fields.
func (s *service) UpdateUser(ctx context.Context, actor Actor, id string, update UserUpdate) (*UserDTO, error) {
	if !actor.IsAdmin() {
		target, err := parseUserID(id)
		if err != nil {
			return nil, err
		}
		if target != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot update another user")
		}
		if update.Role != nil || update.EmailVerified != nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can change role or verification")
		}
	}

	user, err := s.store.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound()
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*UserDTO, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound()
	}
	if err := s.store.UpdateProfile(ctx, id, update); err != nil {
		return nil, err
	}
	return s.GetUserWithProfile(ctx, id)
}

func (s *service) DeleteUser(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound()
	}
	return nil
}

// ListUsers pages users newest first. Without a role filter every role is
// loaded up to listCapPerRole and merged in memory.
func (s *service) ListUsers(ctx context.Context, role *enums.UserRole, page pagination.Params) (*UserList, error) {
	page = page.Normalize()

	if role != nil {
		if !role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		total, err := s.store.CountByRole(ctx, *role)
		if err != nil {
			return nil, err
		}
		users, err := s.store.FindByRole(ctx, *role, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		return newUserList(users, page, total), nil
	}

	var all []models.User
	for _, r := range enums.UserRoles() {
		users, err := s.store.FindByRole(ctx, r, listCapPerRole, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return newUserList(pagination.Slice(all, page), page, int64(len(all))), nil
}

func (s *service) SearchUsers(ctx context.Context, query string, page pagination.Params) (*UserList, error) {
	page = page.Normalize()
	users, total, err := s.store.Search(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}
	return newUserList(users, page, total), nil
}

func (s *service) VerifyEmail(ctx context.Context, id string) (*UserDTO, error) {
	user, err := s.store.VerifyEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound()
	}
	return FromModel(user), nil
}

func (s *service) GetStats(ctx context.Context) (Stats, error) {
	return s.store.GetUserStats(ctx)
}

func newUserList(users []models.User, page pagination.Params, total int64) *UserList {
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserDTO(u))
	}
	return &UserList{Users: out, Pagination: pagination.NewMeta(page, total)}
}
