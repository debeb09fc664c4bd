package services

import (
	"context"
	"strings"
	"time"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/auth"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/validation"
)

// Notifier sends the account emails. Implementations log their own failures.
type Notifier interface {
	SendVerification(ctx context.Context, to, username, link string)
	SendPasswordReset(ctx context.Context, to, username, link string)
}

// Session is the credential pair handed out on login and refresh.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type AccountService struct {
	users           *store.UserStore
	tokens          *auth.TokenService
	hasher          auth.PasswordHasher
	notifier        Notifier
	verifyURLPrefix string
	resetURLPrefix  string
	now             func() time.Time
}

type AccountConfig struct {
	// VerifyURLPrefix gets "/<token>" appended in verification emails.
	VerifyURLPrefix string
	// ResetURLPrefix gets "/<token>" appended in password reset emails.
	ResetURLPrefix string
}

func NewAccountService(users *store.UserStore, tokens *auth.TokenService, hasher auth.PasswordHasher, notifier Notifier, cfg AccountConfig) *AccountService {
	return &AccountService{
		users:           users,
		tokens:          tokens,
		hasher:          hasher,
		notifier:        notifier,
		verifyURLPrefix: strings.TrimSuffix(cfg.VerifyURLPrefix, "/"),
		resetURLPrefix:  strings.TrimSuffix(cfg.ResetURLPrefix, "/"),
		now:             time.Now,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) Register(ctx context.Context, in validation.Register) (*models.User, error) {
	email := normaliseEmail(in.Email)
	username := strings.ToLower(strings.TrimSpace(in.Username))

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierr.Conflict("User with email or username exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apierr.Internal("Failed to hash password", err)
	}

	token := auth.IssueOneTimeToken(s.now())
	user := &models.User{
		Email:                   email,
		Username:                username,
		FullName:                strings.TrimSpace(in.FullName),
		PasswordHash:            hash,
		Role:                    types.RoleNormal,
		EmailVerificationToken:  token.Hash,
		EmailVerificationExpiry: &token.Expiry,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.notifier.SendVerification(ctx, user.Email, user.Username, s.verifyURLPrefix+"/"+token.Plaintext)
	return user, nil
}

// issueSession signs a new token pair. A non-empty previous refresh token is
// rotated out conditionally; otherwise the new one simply replaces it.
func (s *AccountService) issueSession(ctx context.Context, user *models.User, previous string) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, apierr.Internal("Something went wrong while generating access and refresh tokens", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, apierr.Internal("Something went wrong while generating access and refresh tokens", err)
	}
	if previous != "" {
		err = s.users.RotateRefreshToken(ctx, user.ID, previous, refresh)
	} else {
		err = s.users.SetRefreshToken(ctx, user.ID, refresh)
	}
	if err != nil {
		return nil, err
	}
	user.RefreshToken = refresh
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if apierr.Is(err, apierr.KindNotFound) {
			return nil, apierr.BadRequest("Invalid email or password")
		}
		return nil, err
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, apierr.BadRequest("Invalid email or password")
	}

	return s.issueSession(ctx, user, "")
}

func (s *AccountService) Logout(ctx context.Context, userID uint) error {
	return s.users.SetRefreshToken(ctx, userID, "")
}

// Refresh rotates the session. The presented token must be the one stored
// on the user, so a token replayed after rotation or logout fails.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apierr.Unauthorized("Unauthorized request")
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apierr.Unauthorized("Invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if apierr.Is(err, apierr.KindNotFound) {
			return nil, apierr.Unauthorized("Invalid refresh token")
		}
		return nil, err
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, apierr.Unauthorized("Refresh token is expired or used")
	}

	return s.issueSession(ctx, user, refreshToken)
}

func (s *AccountService) VerifyEmail(ctx context.Context, plaintext string) error {
	if plaintext == "" {
		return apierr.BadRequest("Email verification token is missing")
	}

	hash := auth.HashToken(plaintext)
	user, err := s.users.FindByVerificationToken(ctx, hash, s.now())
	if err != nil {
		if apierr.Is(err, apierr.KindNotFound) {
			return apierr.BadRequest("Token is invalid or expired")
		}
		return err
	}

	return s.users.ConsumeVerificationToken(ctx, user.ID, hash)
}

func (s *AccountService) ResendVerification(ctx context.Context, userID uint) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return apierr.Conflict("Email is already verified")
	}

	token := auth.IssueOneTimeToken(s.now())
	err = s.users.Update(ctx, user.ID, map[string]interface{}{
		"email_verification_token":  token.Hash,
		"email_verification_expiry": token.Expiry,
	})
	if err != nil {
		return err
	}

	s.notifier.SendVerification(ctx, user.Email, user.Username, s.verifyURLPrefix+"/"+token.Plaintext)
	return nil
}

func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normaliseEmail(email))
	if err != nil {
		return err
	}

	token := auth.IssueOneTimeToken(s.now())
	err = s.users.Update(ctx, user.ID, map[string]interface{}{
		"forgot_password_token":  token.Hash,
		"forgot_password_expiry": token.Expiry,
	})
	if err != nil {
		return err
	}

	s.notifier.SendPasswordReset(ctx, user.Email, user.Username, s.resetURLPrefix+"/"+token.Plaintext)
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, plaintext, newPassword string) error {
	if plaintext == "" {
		return apierr.BadRequest("Password reset token is missing")
	}

	hash := auth.HashToken(plaintext)
	user, err := s.users.FindByResetToken(ctx, hash, s.now())
	if err != nil {
		if apierr.Is(err, apierr.KindNotFound) {
			return apierr.BadRequest("Token is invalid or expired")
		}
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apierr.Internal("Failed to hash password", err)
	}

	return s.users.ConsumeResetToken(ctx, user.ID, hash, passwordHash)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, oldPassword) {
		return apierr.BadRequest("Invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apierr.Internal("Failed to hash password", err)
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"password_hash": hash})
}

func (s *AccountService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AccountService) SetGlobalRole(ctx context.Context, userID uint, role types.Role) (*models.User, error) {
	if !role.IsGlobalRole() {
		return nil, apierr.BadRequest("Role must be one of admin, normal")
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"role": role}); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}
