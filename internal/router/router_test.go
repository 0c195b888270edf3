package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/instaverse/backend/internal/auth"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/testutil"
	"github.com/anonto42/instaverse/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type server struct {
	t     *testing.T
	e     *echo.Echo
	store *testutil.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := testutil.NewStore()
	e := echo.New()
	e.Validator = validators.NewValidator()
	SetupRoutes(e, Deps{
		Repos: Repositories{
			Users:         store.Users,
			Posts:         store.Posts,
			Comments:      store.Comments,
			Notifications: store.Notifications,
			Reconcile:     testutil.NewReconcileRepository(t),
		},
		Media:    media.NewLocalStore(t.TempDir(), "/uploads"),
		Tokens:   auth.NewTokenIssuer("access-secret-0123456789", "refresh-secret-0123456789", time.Hour, 24*time.Hour),
		Sessions: testutil.NewSessions(),
		PageSize: 8,
		Log:      zap.NewNop(),
	})
	return &server{t: t, e: e, store: store}
}

func (s *server) do(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var body envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func (s *server) json(method, path, token string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return s.do(req, token)
}

type account struct {
	ID           string
	AccessToken  string
	RefreshToken string
}

func (s *server) signUp(username string) account {
	s.t.Helper()
	rec, body := s.json(http.MethodPost, "/api/v1/user/sign-up", "", map[string]string{
		"fullName": strings.ToUpper(username),
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, body.Message)

	var data struct {
		User struct {
			ID string `json:"_id"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(s.t, json.Unmarshal(body.Data, &data))
	return account{ID: data.User.ID, AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}
}

func (s *server) upload(token, caption string) string {
	s.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "photo.jpg")
	require.NoError(s.t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(s.t, err)
	require.NoError(s.t, w.WriteField("caption", caption))
	require.NoError(s.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/post/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec, body := s.do(req, token)
	require.Equal(s.t, http.StatusCreated, rec.Code, body.Message)

	var post struct {
		ID string `json:"_id"`
	}
	require.NoError(s.t, json.Unmarshal(body.Data, &post))
	return post.ID
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}

func TestSignUpSetsCookies(t *testing.T) {
	s := newServer(t)
	rec, body := s.json(http.MethodPost, "/api/v1/user/sign-up", "", map[string]string{
		"fullName": "Alice",
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, body.Success)
	assert.Equal(t, http.StatusCreated, body.StatusCode)
	assert.NotContains(t, string(body.Data), "password123")

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names["accessToken"])
	assert.True(t, names["refreshToken"])

	rec, body = s.json(http.MethodPost, "/api/v1/user/sign-up", "", map[string]string{
		"fullName": "Other",
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)

	rec, body = s.json(http.MethodPost, "/api/v1/user/log-in", "", map[string]string{
		"identifier": "alice",
		"password":   "password123",
	})
	assert.Equal(t, http.StatusOK, rec.Code, body.Message)

	rec, _ = s.json(http.MethodPost, "/api/v1/user/log-in", "", map[string]string{
		"identifier": "alice@example.com",
		"password":   "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpValidation(t *testing.T) {
	s := newServer(t)
	rec, body := s.json(http.MethodPost, "/api/v1/user/sign-up", "", map[string]string{
		"fullName": "Bad Name",
		"username": "bad name",
		"email":    "bad@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username must not contain spaces", body.Message)
	assert.False(t, body.Success)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/notification", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, body.Success)

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/post/home", nil), "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCookieAuthentication(t *testing.T) {
	s := newServer(t)
	alice := s.signUp("alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notification/unread-count", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: alice.AccessToken})
	rec, body := s.do(req, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0}`, string(body.Data))
}

func TestLikeFlowNotifiesOwner(t *testing.T) {
	s := newServer(t)
	alice, bob := s.signUp("alice"), s.signUp("bob")
	postID := s.upload(alice.AccessToken, "first post")

	for i := 0; i < 2; i++ {
		rec, body := s.json(http.MethodPatch, "/api/v1/post/like/"+postID, bob.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, body.Message)
	}

	rec, body := s.json(http.MethodGet, "/api/v1/notification", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []struct {
		Type     string `json:"type"`
		Read     bool   `json:"read"`
		ActionBy struct {
			Username string `json:"username"`
		} `json:"actionBy"`
		Post *struct {
			ID string `json:"_id"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "like", views[0].Type)
	assert.Equal(t, "bob", views[0].ActionBy.Username)
	require.NotNil(t, views[0].Post)
	assert.Equal(t, postID, views[0].Post.ID)

	rec, _ = s.json(http.MethodGet, "/api/v1/notification/read", alice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, body = s.json(http.MethodGet, "/api/v1/notification/unread-count", alice.AccessToken, nil)
	assert.JSONEq(t, `{"count":0}`, string(body.Data))

	rec, _ = s.json(http.MethodPatch, "/api/v1/post/unlike/"+postID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, body = s.json(http.MethodGet, "/api/v1/notification", alice.AccessToken, nil)
	assert.JSONEq(t, `[]`, string(body.Data))
}

func TestCommentRoutes(t *testing.T) {
	s := newServer(t)
	alice, bob := s.signUp("alice"), s.signUp("bob")
	postID := s.upload(alice.AccessToken, "")

	rec, body := s.json(http.MethodPost, "/api/v1/post/comment/"+postID, bob.AccessToken, map[string]string{"text": "hi @alice"})
	require.Equal(t, http.StatusCreated, rec.Code, body.Message)
	var comment struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &comment))

	rec, body = s.json(http.MethodPatch, "/api/v1/post/comment/"+comment.ID+"/reply", alice.AccessToken, map[string]string{"text": "thanks"})
	require.Equal(t, http.StatusCreated, rec.Code, body.Message)
	var reply struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &reply))

	rec, _ = s.json(http.MethodPatch, "/api/v1/post/comment/"+comment.ID+"/replies/"+reply.ID+"/like", bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.json(http.MethodGet, "/api/v1/post/comment/"+postID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []struct {
		Text    string `json:"text"`
		Replies []struct {
			Text  string   `json:"text"`
			Likes []string `json:"likes"`
		} `json:"replies"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &comments))
	require.Len(t, comments, 1)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, []string{bob.ID}, comments[0].Replies[0].Likes)

	rec, _ = s.json(http.MethodPatch, "/api/v1/post/comment/"+comment.ID, alice.AccessToken, map[string]string{"text": "edited"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.json(http.MethodDelete, "/api/v1/post/comment/"+comment.ID+"/replies/"+reply.ID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.json(http.MethodDelete, "/api/v1/post/comment/"+comment.ID, alice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.store.Notifications.All())
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	s := newServer(t)
	alice := s.signUp("alice")
	rec, body := s.json(http.MethodGet, "/api/v1/post/not-an-id", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid postId", body.Message)

	rec, _ = s.json(http.MethodGet, "/api/v1/post/0123456789abcdef01234567", alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowAndProfile(t *testing.T) {
	s := newServer(t)
	alice, bob := s.signUp("alice"), s.signUp("bob")

	rec, body := s.json(http.MethodPatch, "/api/v1/user/follow/"+bob.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, body.Message)
	rec, _ = s.json(http.MethodPatch, "/api/v1/user/follow/"+alice.ID, alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.json(http.MethodGet, "/api/v1/user/follower/"+bob.ID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var followers []struct {
		Username  string   `json:"username"`
		Following []string `json:"following"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &followers))
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)
	assert.Equal(t, []string{bob.ID}, followers[0].Following)

	rec, body = s.json(http.MethodGet, "/api/v1/user/bob", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Username string        `json:"username"`
		Posts    []interface{} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &profile))
	assert.Equal(t, "bob", profile.Username)
	assert.Empty(t, profile.Posts)

	rec, _ = s.json(http.MethodGet, "/api/v1/user/search?query=", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	s := newServer(t)
	alice := s.signUp("alice")

	rec, body := s.json(http.MethodPost, "/api/v1/user/refresh-token", "", map[string]string{"refreshToken": alice.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, body.Message)

	// the old refresh token was consumed by the rotation
	rec, _ = s.json(http.MethodPost, "/api/v1/user/refresh-token", "", map[string]string{"refreshToken": alice.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFirebaseLoginDisabled(t *testing.T) {
	s := newServer(t)
	rec, body := s.json(http.MethodPost, "/api/v1/user/firebase-login", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, body.Success)
}
