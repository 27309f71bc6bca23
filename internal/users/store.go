package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-identity/internal/repo"
	"github.com/angelmondragon/packfinderz-identity/pkg/db"
	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/security"
	"github.com/angelmondragon/packfinderz-identity/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultBcryptCost = 12

var (
	userColumns = []string{
		"id", "email", "password_hash", "role", "email_verified", "created_at", "updated_at",
	}
	profileColumns = []string{
		"id", "user_id", "first_name", "last_name", "company_name", "phone", "address",
		"kyc_status", "created_at", "updated_at",
	}
)

// Store persists users and their profiles.
type Store struct {
	db         *db.Client
	users      *repo.Table[models.User]
	profiles   *repo.Table[models.UserProfile]
	bcryptCost int
	validate   *validator.Validate
}

// NewStore binds the identity tables. A non-positive cost selects DefaultBcryptCost.
func NewStore(client *db.Client, bcryptCost int) (*Store, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	if bcryptCost <= 0 {
		bcryptCost = DefaultBcryptCost
	}
	conn := client.DB()
	return &Store{
		db:         client,
		users:      repo.NewTable[models.User](conn, models.User{}.TableName(), userColumns...),
		profiles:   repo.NewTable[models.UserProfile](conn, models.UserProfile{}.TableName(), profileColumns...),
		bcryptCost: bcryptCost,
		validate:   validator.New(),
	}, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}

// FindByEmail matches the stored value exactly. Callers normalize case.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	return s.users.FindByField(ctx, "email", email)
}

type joinedRow struct {
	models.User
	ProfileID        uuid.NullUUID `gorm:"column:profile_id"`
	FirstName        *string       `gorm:"column:first_name"`
	LastName         *string       `gorm:"column:last_name"`
	CompanyName      *string       `gorm:"column:company_name"`
	Phone            *string       `gorm:"column:phone"`
	Address          *string       `gorm:"column:address"`
	KYCStatus        *string       `gorm:"column:kyc_status"`
	ProfileCreatedAt *time.Time    `gorm:"column:profile_created_at"`
	ProfileUpdatedAt *time.Time    `gorm:"column:profile_updated_at"`
}

const joinedUserQuery = `
SELECT u.id, u.email, u.password_hash, u.role, u.email_verified, u.created_at, u.updated_at,
       p.id AS profile_id, p.first_name, p.last_name, p.company_name, p.phone, p.address,
       p.kyc_status, p.created_at AS profile_created_at, p.updated_at AS profile_updated_at
FROM users u
LEFT JOIN user_profiles p ON p.user_id = u.id
WHERE u.id = ?
LIMIT 1`

// FindWithProfile loads a user and its profile in one query. Nil when the user is absent.
func (s *Store) FindWithProfile(ctx context.Context, id string) (*UserWithProfile, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	var rows []joinedRow
	if err := s.db.Raw(ctx, joinedUserQuery, userID).Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: find with profile")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]

	out := &UserWithProfile{User: row.User}
	if row.FirstName == nil && row.LastName == nil && row.CompanyName == nil {
		return out, nil
	}

	profile := &models.UserProfile{
		UserID:      row.ID,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		CompanyName: row.CompanyName,
		Phone:       row.Phone,
		KYCStatus:   enums.KYCStatusPending,
	}
	if row.ProfileID.Valid {
		profile.ID = row.ProfileID.UUID
	}
	if row.KYCStatus != nil {
		profile.KYCStatus = enums.KYCStatus(*row.KYCStatus)
	}
	if row.ProfileCreatedAt != nil {
		profile.CreatedAt = *row.ProfileCreatedAt
	}
	if row.ProfileUpdatedAt != nil {
		profile.UpdatedAt = *row.ProfileUpdatedAt
	}
	if row.Address != nil {
		var addr types.Address
		if err := addr.Scan(*row.Address); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: decode address")
		}
		profile.Address = &addr
	}
	out.Profile = profile
	return out, nil
}

// Create validates and hashes the credentials, then inserts the user and optional profile atomically.
func (s *Store) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if err := s.checkEmail(input.Email); err != nil {
		return nil, err
	}
	if err := security.ValidateStrength(input.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if input.Profile != nil {
		if err := s.validate.Struct(input.Profile); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid profile")
		}
	}

	taken, err := s.users.Exists(ctx, "email", input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithDB(tx).Create(ctx, user); err != nil {
			return err
		}
		if input.Profile == nil {
			return nil
		}
		return s.profiles.WithDB(tx).Create(ctx, input.Profile.toModel(user.ID))
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: create")
	}
	return user, nil
}

// UpdateUser applies the supplied fields. Returns nil when the user is absent.
func (s *Store) UpdateUser(ctx context.Context, id string, update UserUpdate) (*models.User, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return s.users.FindByID(ctx, userID)
	}

	fields := map[string]any{}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if err := s.checkEmail(email); err != nil {
			return nil, err
		}
		owner, err := s.users.FindByField(ctx, "email", email)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		fields["email"] = email
	}
	if update.Role != nil {
		if !update.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		fields["role"] = *update.Role
	}
	if update.EmailVerified != nil {
		fields["email_verified"] = *update.EmailVerified
	}

	user, err := s.users.Update(ctx, userID, fields)
	if err != nil && db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
	}
	return user, err
}

// UpdateProfile writes only the supplied fields, creating the profile on first write.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	uid, err := parseUserID(userID)
	if err != nil {
		return err
	}
	fields := update.columns()
	if len(fields) == 0 {
		return nil
	}
	if update.KYCStatus.Set && (update.KYCStatus.Null || !update.KYCStatus.Value.IsValid()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid kyc_status")
	}

	existing, err := s.profiles.FindByField(ctx, "user_id", uid)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err = s.profiles.Update(ctx, existing.ID, fields)
		return err
	}

	profile := &models.UserProfile{UserID: uid, KYCStatus: enums.KYCStatusPending}
	applyProfileUpdate(profile, update)
	err = s.profiles.Create(ctx, profile)
	if err == nil || !db.IsUniqueViolation(err, "") {
		return err
	}

	// Lost the insert race; the row exists now.
	existing, err = s.profiles.FindByField(ctx, "user_id", uid)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeDatabase, "user_profiles: missing after conflict")
	}
	_, err = s.profiles.Update(ctx, existing.ID, fields)
	return err
}

func applyProfileUpdate(p *models.UserProfile, u ProfileUpdate) {
	if u.FirstName.Set {
		p.FirstName = u.FirstName.Ptr()
	}
	if u.LastName.Set {
		p.LastName = u.LastName.Ptr()
	}
	if u.CompanyName.Set {
		p.CompanyName = u.CompanyName.Ptr()
	}
	if u.Phone.Set {
		p.Phone = u.Phone.Ptr()
	}
	if u.Address.Set {
		p.Address = u.Address.Ptr()
	}
	if u.KYCStatus.Set && !u.KYCStatus.Null {
		p.KYCStatus = u.KYCStatus.Value
	}
}

// VerifyPassword reports whether plain matches hash. Malformed hashes never match.
func (s *Store) VerifyPassword(plain, hash string) bool {
	ok, err := security.VerifyPassword(plain, hash)
	return err == nil && ok
}

// ChangePassword rehashes without checking the previous password.
func (s *Store) ChangePassword(ctx context.Context, userID, newPassword string) error {
	uid, err := parseUserID(userID)
	if err != nil {
		return err
	}
	if err := security.ValidateStrength(newPassword); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user, err := s.users.Update(ctx, uid, map[string]any{"password_hash": hash})
	if err != nil {
		return err
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *Store) VerifyEmail(ctx context.Context, userID string) (*models.User, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.users.Update(ctx, uid, map[string]any{"email_verified": true})
}

// FindByRole returns one page of users holding role, newest first.
func (s *Store) FindByRole(ctx context.Context, role enums.UserRole, limit, offset int) ([]models.User, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	q := s.users.DB(ctx).Where("role = ?", role).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	out := []models.User{}
	if err := q.Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: find by role")
	}
	return out, nil
}

// CountByRole counts users holding role.
func (s *Store) CountByRole(ctx context.Context, role enums.UserRole) (int64, error) {
	return s.users.Count(ctx, map[string]any{"role": role})
}

const searchFilter = `
LEFT JOIN user_profiles p ON p.user_id = users.id
WHERE lower(users.email) LIKE ? ESCAPE '\'
   OR lower(p.first_name) LIKE ? ESCAPE '\'
   OR lower(p.last_name) LIKE ? ESCAPE '\'
   OR lower(p.company_name) LIKE ? ESCAPE '\'`

// Search matches query as a case-insensitive substring of email and profile names.
func (s *Store) Search(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	args := []any{pattern, pattern, pattern, pattern}

	var total int64
	if err := s.db.Raw(ctx, "SELECT COUNT(*) FROM users"+searchFilter, args...).Scan(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: search count")
	}

	sql := "SELECT users.* FROM users" + searchFilter + " ORDER BY users.created_at DESC"
	if limit > 0 {
		sql += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	out := []models.User{}
	if err := s.db.Raw(ctx, sql, args...).Scan(&out).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: search")
	}
	return out, total, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// GetUserStats counts users overall, by role and by verification state.
func (s *Store) GetUserStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByRole: make(map[enums.UserRole]int64, len(enums.UserRoles()))}
	for _, role := range enums.UserRoles() {
		stats.ByRole[role] = 0
	}

	var grouped []struct {
		Role  enums.UserRole
		Count int64
	}
	err := s.users.DB(ctx).Select("role, COUNT(*) AS count").Group("role").Scan(&grouped).Error
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "users: stats by role")
	}
	for _, g := range grouped {
		stats.ByRole[g.Role] = g.Count
		stats.Total += g.Count
	}

	verified, err := s.users.Count(ctx, map[string]any{"email_verified": true})
	if err != nil {
		return Stats{}, err
	}
	stats.Verified = verified
	stats.Unverified = stats.Total - verified
	return stats, nil
}

// Delete removes the user and its profile. Reports false when nothing was deleted.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return false, err
	}
	var deleted bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserProfile{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "user_profiles: delete")
		}
		ok, err := s.users.WithDB(tx).Delete(ctx, userID)
		deleted = ok
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *Store) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid email").
			WithDetails(map[string]string{"email": "must be a valid email address"})
	}
	return nil
}

func parseUserID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id")
	}
	return parsed, nil
}
