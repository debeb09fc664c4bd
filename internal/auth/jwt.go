package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/monocle-dev/taskhub/internal/apierr"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 10 * 24 * time.Hour
)

// ErrInvalidToken is returned for every verification failure so callers
// cannot tell an expired token from a forged one.
var ErrInvalidToken = apierr.Unauthorized("Invalid or expired token")

type AccessClaims struct {
	UserID   uint   `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID uint `json:"_id"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET environment variable is not set")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_TOKEN_SECRET environment variable is not set")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) registered(userID uint, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) IssueAccessToken(userID uint, email, username string) (string, error) {
	claims := AccessClaims{
		UserID:           userID,
		Email:            email,
		Username:         username,
		RegisteredClaims: s.registered(userID, s.accessTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

func (s *TokenService) IssueRefreshToken(userID uint) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		RegisteredClaims: s.registered(userID, s.refreshTTL),
	}
	// Two refreshes inside the same second would otherwise sign identical
	// tokens and defeat reuse detection.
	claims.ID = randomHex(8)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.refreshSecret)
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(tokenString, s.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(tokenString, s.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) verify(tokenString string, secret []byte, claims jwt.Claims) error {
	if tokenString == "" {
		return ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// IsInvalidToken reports whether err came from token verification.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}
