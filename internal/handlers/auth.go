package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	tokens "github.com/anonto42/instaverse/backend/internal/auth"
	"github.com/anonto42/instaverse/backend/internal/middleware"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"github.com/anonto42/instaverse/backend/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const RefreshCookie = "refreshToken"

// IDTokenVerifier is the part of the Firebase auth client used for login
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	users        repositories.UserRepository
	tokens       *tokens.TokenIssuer
	sessions     session.Store
	firebaseAuth IDTokenVerifier
	secure       bool
	log          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. firebaseAuth may be nil when Firebase is not configured.
func NewAuthHandler(users repositories.UserRepository, issuer *tokens.TokenIssuer, sessions session.Store, firebaseAuth IDTokenVerifier, secure bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		tokens:       issuer,
		sessions:     sessions,
		firebaseAuth: firebaseAuth,
		secure:       secure,
		log:          log,
	}
}

// RegisterAuthRoutes registers authentication routes under the user group
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/sign-up", h.SignUp)
	g.POST("/log-in", h.LogIn)
	g.POST("/refresh-token", h.RefreshToken)
	g.POST("/firebase-login", h.FirebaseLogin)
	g.GET("/logout", h.Logout, requireAuth)
}

// SignUp handles local user registration with email and password
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req models.SignUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := h.users.GetUserByEmail(ctx, email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	}
	if _, err := h.users.GetUserByUsername(ctx, req.Username); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		FullName: req.FullName,
		Username: req.Username,
		Email:    email,
		Password: string(hashedPassword),
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "User already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}
	h.log.Info("user signed up", zap.String("user_id", user.ID.Hex()))

	return h.startSession(c, http.StatusCreated, user, "User registered successfully")
}

// LogIn authenticates by email or username and password
func (h *AuthHandler) LogIn(c echo.Context) error {
	var req models.LogInRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	identifier := strings.TrimSpace(req.Identifier)

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = h.users.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = h.users.GetUserByUsername(ctx, identifier)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}

	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	return h.startSession(c, http.StatusOK, user, "User logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates the refresh session and issues a new token pair
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := ""
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token is missing")
	}

	claims, err := h.tokens.ParseRefresh(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	ctx := c.Request().Context()
	owner, err := h.sessions.Lookup(ctx, claims.SessionID)
	if err != nil || owner != claims.UserID {
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token is expired or used")
	}
	if err := h.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to rotate session")
	}

	actor, err := claims.Actor()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	user, err := h.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	return h.startSession(c, http.StatusOK, user, "Access token refreshed")
}

// Logout revokes the refresh session and clears the cookies
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		if claims, err := h.tokens.ParseRefresh(cookie.Value); err == nil {
			if err := h.sessions.Revoke(c.Request().Context(), claims.SessionID); err != nil {
				h.log.Warn("failed to revoke session", zap.Error(err))
			}
		}
	}
	h.setCookie(c, middleware.AccessCookie, "", -1)
	h.setCookie(c, RefreshCookie, "", -1)
	return respond(c, http.StatusOK, nil, "User logged out")
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin exchanges a Firebase ID token for local tokens, creating the account on first login
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebaseAuth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase login is not configured")
	}
	var req FirebaseLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	token, err := h.firebaseAuth.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}
	email, _ := token.Claims["email"].(string)
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Firebase account has no email")
	}
	email = strings.ToLower(email)

	user, err := h.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		name, _ := token.Claims["name"].(string)
		picture, _ := token.Claims["picture"].(string)
		user = &models.User{
			FullName: name,
			Username: h.freeUsername(ctx, email),
			Email:    email,
			Avatar:   models.Avatar{URL: picture},
		}
		if err := h.users.CreateUser(ctx, user); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
		}
		h.log.Info("user created from firebase login", zap.String("user_id", user.ID.Hex()))
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}
	return h.startSession(c, http.StatusOK, user, "User logged in successfully")
}

var nonWord = regexp.MustCompile(`\W+`)

// freeUsername derives an unused username from the email local part
func (h *AuthHandler) freeUsername(ctx context.Context, email string) string {
	base := nonWord.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		if _, err := h.users.GetUserByUsername(ctx, candidate); errors.Is(err, repositories.ErrNotFound) {
			return candidate
		}
		candidate = base + "_" + uuid.NewString()[:6]
	}
	return candidate
}

// startSession issues the token pair, stores the refresh session and sets both cookies
func (h *AuthHandler) startSession(c echo.Context, status int, user *models.User, message string) error {
	sid := session.NewID()
	if err := h.sessions.Save(c.Request().Context(), sid, user.ID.Hex(), h.tokens.RefreshTTL()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store session")
	}
	access, err := h.tokens.IssueAccess(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	refresh, err := h.tokens.IssueRefresh(user, sid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	h.setCookie(c, middleware.AccessCookie, access, h.tokens.AccessTTL())
	h.setCookie(c, RefreshCookie, refresh, h.tokens.RefreshTTL())
	return respond(c, status, echo.Map{
		"user":         user,
		"accessToken":  access,
		"refreshToken": refresh,
	}, message)
}

// setCookie writes an http-only cookie; a negative ttl deletes it
func (h *AuthHandler) setCookie(c echo.Context, name, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.secure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	if ttl < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(ttl.Seconds())
	}
	c.SetCookie(cookie)
}
