package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
)

// Token scopes. A token is only accepted where its scope is expected.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
	ScopeEmail   = "email_token"
)

const issuer = "contacts-api"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongScope   = errors.New("token has the wrong scope")
)

// Claims are the JWT claims of every token the service issues. The subject is the email address
// of the user.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenService issues and validates the access, refresh and email verification tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService signing with the configured secret.
func NewTokenService(cfg config.Tokens) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		emailTTL:   cfg.EmailTTL,
		now:        time.Now,
	}
}

// CreateAccessToken returns a short lived token authorizing API calls for email.
func (s *TokenService) CreateAccessToken(email string) (string, error) {
	return s.create(email, ScopeAccess, s.accessTTL)
}

// CreateRefreshToken returns a long lived token that can be exchanged for a new token pair.
func (s *TokenService) CreateRefreshToken(email string) (string, error) {
	return s.create(email, ScopeRefresh, s.refreshTTL)
}

// CreateEmailToken returns the token embedded in confirmation emails.
func (s *TokenService) CreateEmailToken(email string) (string, error) {
	return s.create(email, ScopeEmail, s.emailTTL)
}

func (s *TokenService) create(email, scope string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", scope, err)
	}
	return signed, nil
}

// Validate checks signature, expiry and scope of a token and returns the email address it was
// issued for.
func (s *TokenService) Validate(tokenString, scope string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Scope != scope {
		return "", ErrWrongScope
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
