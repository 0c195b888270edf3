package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserHandler handles HTTP requests related to users and their relations
type UserHandler struct {
	users  *services.UserService
	reader *services.Reader
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService, reader *services.Reader) *UserHandler {
	return &UserHandler{users: users, reader: reader}
}

// RegisterUserRoutes registers user routes; requireAuth guards everything but the public lookups
func (h *UserHandler) RegisterUserRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/check-availability", h.CheckAvailability)
	g.GET("/guest", h.Guests)

	g.POST("/update-profile", h.UpdateProfile, requireAuth)
	g.GET("/bookmark", h.Bookmarks, requireAuth)
	g.PATCH("/bookmark/add/:postId", h.AddBookmark, requireAuth)
	g.PATCH("/bookmark/remove/:postId", h.RemoveBookmark, requireAuth)
	g.GET("/liked-posts", h.LikedPosts, requireAuth)

	g.GET("/follower/:userId", h.Followers, requireAuth)
	g.GET("/following/:userId", h.Following, requireAuth)
	g.PATCH("/follow/:userId", h.Follow, requireAuth)
	g.PATCH("/unfollow/:userId", h.Unfollow, requireAuth)
	g.PATCH("/remove-follower/:userId", h.RemoveFollower, requireAuth)

	g.GET("/suggested-user", h.Suggested, requireAuth)
	g.GET("/search", h.Search, requireAuth)
	g.GET("/searchList", h.SearchList, requireAuth)
	g.PATCH("/searchList/add/:userId", h.AddSearch, requireAuth)
	g.PATCH("/searchList/remove/:userId", h.RemoveSearch, requireAuth)
	g.PATCH("/searchList/clear", h.ClearSearch, requireAuth)

	g.GET("/id/:userId", h.GetUserByID, requireAuth)
	g.GET("/:username", h.GetUserByUsername, requireAuth)
}

func (h *UserHandler) CheckAvailability(c echo.Context) error {
	var req models.CheckAvailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	avail, err := h.users.CheckAvailability(c.Request().Context(), req.Username, req.Email)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, avail, "Availability checked")
}

func (h *UserHandler) Guests(c echo.Context) error {
	guests, err := h.users.Guests(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, guests, "Guest users fetched successfully")
}

// UpdateProfile accepts multipart fields plus an optional "avatar" file
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req models.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var avatar *media.File
	if fh, err := c.FormFile("avatar"); err == nil {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read avatar")
		}
		defer src.Close()
		avatar = &media.File{Name: fh.Filename, Size: fh.Size, Body: src}
	}

	user, err := h.users.EditProfile(c.Request().Context(), actor, req, avatar)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, user, "Profile updated successfully")
}

func (h *UserHandler) Bookmarks(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	posts, err := h.reader.Bookmarks(c.Request().Context(), actor)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, posts, "Bookmarks fetched successfully")
}

func (h *UserHandler) LikedPosts(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	posts, err := h.reader.LikedPosts(c.Request().Context(), actor)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, posts, "Liked posts fetched successfully")
}

type relationAction func(context.Context, models.Actor, primitive.ObjectID) error

// relate runs an actor-to-id action read from param and answers with message
func relate(c echo.Context, param string, action relationAction, message string) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, param)
	if err != nil {
		return err
	}
	if err := action(c.Request().Context(), actor, id); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, message)
}

func (h *UserHandler) AddBookmark(c echo.Context) error {
	return relate(c, "postId", h.users.AddBookmark, "Post bookmarked successfully")
}

func (h *UserHandler) RemoveBookmark(c echo.Context) error {
	return relate(c, "postId", h.users.RemoveBookmark, "Bookmark removed successfully")
}

func (h *UserHandler) Follow(c echo.Context) error {
	return relate(c, "userId", h.users.Follow, "User followed successfully")
}

func (h *UserHandler) Unfollow(c echo.Context) error {
	return relate(c, "userId", h.users.Unfollow, "User unfollowed successfully")
}

func (h *UserHandler) RemoveFollower(c echo.Context) error {
	return relate(c, "userId", h.users.RemoveFollower, "Follower removed successfully")
}

func (h *UserHandler) AddSearch(c echo.Context) error {
	return relate(c, "userId", h.users.AddSearch, "Search list updated")
}

func (h *UserHandler) RemoveSearch(c echo.Context) error {
	return relate(c, "userId", h.users.RemoveSearch, "Search list updated")
}

func (h *UserHandler) ClearSearch(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.users.ClearSearch(c.Request().Context(), actor); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, "Search list cleared")
}

func (h *UserHandler) SearchList(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	users, err := h.users.SearchList(c.Request().Context(), actor)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Search list fetched successfully")
}

func (h *UserHandler) Followers(c echo.Context) error {
	userID, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}
	users, err := h.users.Followers(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Followers fetched successfully")
}

func (h *UserHandler) Following(c echo.Context) error {
	userID, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}
	users, err := h.users.Following(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Following fetched successfully")
}

func (h *UserHandler) Suggested(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	users, err := h.users.Suggested(c.Request().Context(), actor)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Suggested users fetched successfully")
}

func (h *UserHandler) Search(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	users, err := h.users.Search(c.Request().Context(), actor, c.QueryParam("query"))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Users fetched successfully")
}

func (h *UserHandler) GetUserByID(c echo.Context) error {
	userID, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}
	profile, err := h.users.ProfileByID(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, profile, "User fetched successfully")
}

func (h *UserHandler) GetUserByUsername(c echo.Context) error {
	profile, err := h.users.ProfileByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, profile, "User fetched successfully")
}
