package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts  *services.PostService
	reader *services.Reader
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService, reader *services.Reader) *PostHandler {
	return &PostHandler{posts: posts, reader: reader}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("", h.Feed)
	g.GET("/home", h.Home)
	g.GET("/:postId", h.GetPost)
	g.POST("/upload", h.Upload)
	g.DELETE("/delete/:postId", h.DeletePost)
	g.PATCH("/edit/:postId", h.EditPost)
	g.GET("/liked-user/:postId", h.LikedUsers)
	g.PATCH("/like/:postId", h.Like)
	g.PATCH("/unlike/:postId", h.Unlike)
}

func pageParam(c echo.Context) int {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	return page
}

// Feed pages through every post
func (h *PostHandler) Feed(c echo.Context) error {
	page, err := h.reader.Feed(c.Request().Context(), pageParam(c))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, page, "Posts fetched successfully")
}

// Home pages through the posts of followed users and the actor
func (h *PostHandler) Home(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	page, err := h.reader.Home(c.Request().Context(), actor, pageParam(c))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, page, "Home posts fetched successfully")
}

func (h *PostHandler) GetPost(c echo.Context) error {
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	view, err := h.reader.PostView(c.Request().Context(), postID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, view, "Post fetched successfully")
}

// Upload creates a post from a multipart "image" file and "caption" field
func (h *PostHandler) Upload(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Post image is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read post image")
	}
	defer src.Close()

	file := media.File{Name: fh.Filename, Size: fh.Size, Body: src}
	post, err := h.posts.Upload(c.Request().Context(), actor, file, c.FormValue("caption"))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusCreated, post, "Post uploaded successfully")
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	if err := h.posts.Delete(c.Request().Context(), actor, postID); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, "Post deleted successfully")
}

func (h *PostHandler) EditPost(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	var req models.EditPostRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	post, err := h.posts.EditCaption(c.Request().Context(), actor, postID, req.Caption)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, post, "Post updated successfully")
}

func (h *PostHandler) LikedUsers(c echo.Context) error {
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	users, err := h.posts.LikedUsers(c.Request().Context(), postID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Liked users fetched successfully")
}

func (h *PostHandler) Like(c echo.Context) error {
	return h.toggleLike(c, h.posts.Like, "Post liked successfully")
}

func (h *PostHandler) Unlike(c echo.Context) error {
	return h.toggleLike(c, h.posts.Unlike, "Post unliked successfully")
}

type postToggle func(context.Context, models.Actor, primitive.ObjectID) (*models.Post, error)

func (h *PostHandler) toggleLike(c echo.Context, apply postToggle, message string) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	post, err := apply(c.Request().Context(), actor, postID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, post, message)
}
