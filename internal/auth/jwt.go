package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the identity a player acts under.
type Claims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
	Guest       bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) CurrentUserID() string      { return c.UserID }
func (c *Claims) CurrentDisplayName() string { return c.DisplayName }

type Service struct {
	secret []byte
	now    func() time.Time
}

func NewService(secret []byte) *Service {
	return &Service{secret: secret, now: time.Now}
}

func (s *Service) Sign(userID, displayName string, ttl time.Duration) (string, error) {
	return s.sign(Claims{UserID: userID, DisplayName: displayName}, ttl)
}

// SignGuest issues a token for a player without an account.
func (s *Service) SignGuest(userID, displayName string, ttl time.Duration) (string, error) {
	return s.sign(Claims{UserID: userID, DisplayName: displayName, Guest: true}, ttl)
}

func (s *Service) sign(claims Claims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) Verify(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
