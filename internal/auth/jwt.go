package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the shopper identity issued by the storefront login.
// UserID is the backend user id; ExternalID is the identity provider id and
// may be the only id present for freshly registered accounts.
type Claims struct {
	UserID     string `json:"user_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the input for Issue.
type Identity struct {
	UserID     string
	ExternalID string
	Email      string
	Name       string
	Phone      string
	Role       string
}

// TokenService signs and verifies HS256 shopper tokens
type TokenService struct {
	secretKey []byte
	issuer    string
	expiry    time.Duration
}

// NewTokenService creates a token service. An empty issuer disables the issuer check.
func NewTokenService(secretKey, issuer string, expiry time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiry:    expiry,
	}
}

// Issue signs a token for the identity. The subject is the backend user id,
// or the external id when the backend id is not known yet.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	subject := id.UserID
	if subject == "" {
		subject = id.ExternalID
	}
	if subject == "" {
		return "", time.Time{}, ErrInvalidToken
	}

	claims := Claims{
		UserID:     id.UserID,
		ExternalID: id.ExternalID,
		Email:      id.Email,
		Name:       id.Name,
		Phone:      id.Phone,
		Role:       id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Verify validates a token and returns its claims
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Expiry returns the lifetime of issued tokens
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}
