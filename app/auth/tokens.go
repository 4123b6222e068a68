// Package auth issues and verifies the bearer tokens that guard catalog
// writes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrMohammed1/miran-search/models"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    uint   `json:"user_id"`
	Superuser bool   `json:"is_superuser,omitempty"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

type Service struct {
	users UserStore
	cfg   Config
	now   func() time.Time
	// dummyHash is compared against when the user does not exist so that
	// both failure paths cost one bcrypt comparison.
	dummyHash []byte
}

func NewService(users UserStore, cfg Config) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)
	return &Service{users: users, cfg: cfg, now: time.Now, dummyHash: dummy}
}

// HashPassword returns the bcrypt hash stored in models.User.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Obtain checks the credentials and issues an access/refresh pair.
func (s *Service) Obtain(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, err := s.sign(user.ID, user.IsSuperuser, TokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, user.IsSuperuser, TokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(refreshToken string) (string, error) {
	claims, err := s.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return "", err
	}
	return s.sign(claims.UserID, claims.Superuser, TokenAccess, s.cfg.AccessTTL)
}

// Verify parses token and checks its signature, expiry and type.
func (s *Service) Verify(token, tokenType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, tokenType)
	}
	return claims, nil
}

func (s *Service) sign(userID uint, superuser bool, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		TokenType: tokenType,
		UserID:    userID,
		Superuser: superuser,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
