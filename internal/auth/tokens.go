// Package auth issues and verifies the access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by both token kinds; SessionID is only set on refresh tokens
type Claims struct {
	UserID    string `json:"_id"`
	Username  string `json:"username"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the request identity
func (c *Claims) Actor() (models.Actor, error) {
	id, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return models.Actor{}, ErrInvalidToken
	}
	return models.Actor{ID: id, Username: c.Username}, nil
}

type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenIssuer) IssueAccess(user *models.User) (string, error) {
	return t.sign(user, "", t.accessTTL, t.accessSecret)
}

func (t *TokenIssuer) IssueRefresh(user *models.User, sessionID string) (string, error) {
	return t.sign(user, sessionID, t.refreshTTL, t.refreshSecret)
}

func (t *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	return t.parse(token, t.accessSecret)
}

func (t *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	claims, err := t.parse(token, t.refreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) sign(user *models.User, sessionID string, ttl time.Duration, secret []byte) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:    user.ID.Hex(),
		Username:  user.Username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
