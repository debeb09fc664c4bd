package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

// UserStore persists identities and their credential material.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) WithTx(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = types.RoleNormal
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if apierr.Is(translate(err, ""), apierr.KindConflict) {
			return apierr.Conflict("User with email or username exists")
		}
		return translate(err, "")
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	return &user, nil
}

func (s *UserStore) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

// FindByVerificationToken matches an unexpired email verification hash.
func (s *UserStore) FindByVerificationToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email_verification_token = ? AND email_verification_expiry > ?", hash, now).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "Token is invalid or expired")
	}
	return &user, nil
}

// FindByResetToken matches an unexpired password reset hash.
func (s *UserStore) FindByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("forgot_password_token = ? AND forgot_password_expiry > ?", hash, now).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "Token is invalid or expired")
	}
	return &user, nil
}

// Update writes the given columns on one user; zero matched rows is NotFound.
func (s *UserStore) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "User not found")
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("User not found")
	}
	return nil
}

func (s *UserStore) SetRefreshToken(ctx context.Context, id uint, token string) error {
	return s.Update(ctx, id, map[string]interface{}{"refresh_token": token})
}

// RotateRefreshToken swaps current for next only while current is still the
// stored token, so two refreshes racing on one token cannot both win.
func (s *UserStore) RotateRefreshToken(ctx context.Context, id uint, current, next string) error {
	if current == "" {
		return apierr.Unauthorized("Refresh token is expired or used")
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, current).
		Update("refresh_token", next)
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apierr.Unauthorized("Refresh token is expired or used")
	}
	return nil
}

// ConsumeVerificationToken marks the user verified and clears the token in
// one conditional update so a token can only be exchanged once.
func (s *UserStore) ConsumeVerificationToken(ctx context.Context, id uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND email_verification_token = ?", id, hash).
		Updates(map[string]interface{}{
			"is_email_verified":         true,
			"email_verification_token":  "",
			"email_verification_expiry": nil,
		})
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apierr.BadRequest("Token is invalid or expired")
	}
	return nil
}

// ConsumeResetToken stores the new password hash, clears the reset token and
// revokes the refresh token.
func (s *UserStore) ConsumeResetToken(ctx context.Context, id uint, hash, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND forgot_password_token = ?", id, hash).
		Updates(map[string]interface{}{
			"password_hash":          passwordHash,
			"forgot_password_token":  "",
			"forgot_password_expiry": nil,
			"refresh_token":          "",
		})
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apierr.BadRequest("Token is invalid or expired")
	}
	return nil
}

// ClearExpiredTokens drops verification and reset hashes whose expiry has
// passed. It returns the number of users touched.
func (s *UserStore) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email_verification_expiry IS NOT NULL AND email_verification_expiry <= ?", now).
		Updates(map[string]interface{}{"email_verification_token": "", "email_verification_expiry": nil})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	total += res.RowsAffected

	res = s.db.WithContext(ctx).Model(&models.User{}).
		Where("forgot_password_expiry IS NOT NULL AND forgot_password_expiry <= ?", now).
		Updates(map[string]interface{}{"forgot_password_token": "", "forgot_password_expiry": nil})
	if res.Error != nil {
		return total, translate(res.Error, "")
	}
	total += res.RowsAffected

	return total, nil
}
