package auth

import (
	"testing"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer("access-secret-0123456789", "refresh-secret-0123456789", time.Hour, 24*time.Hour)
}

func TestAccessToken(t *testing.T) {
	issuer := newIssuer()
	user := &models.User{ID: primitive.NewObjectID(), Username: "ann"}

	token, err := issuer.IssueAccess(user)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(token)
	require.NoError(t, err)
	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.ID)
	assert.Equal(t, "ann", actor.Username)

	// an access token is not a refresh token
	_, err = issuer.ParseRefresh(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	issuer := newIssuer()
	user := &models.User{ID: primitive.NewObjectID(), Username: "ann"}

	token, err := issuer.IssueRefresh(user, "session-1")
	require.NoError(t, err)

	claims, err := issuer.ParseRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)

	_, err = issuer.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	issuer := newIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.IssueAccess(&models.User{ID: primitive.NewObjectID()})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
