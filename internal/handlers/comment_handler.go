package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentHandler handles HTTP requests related to comments and their replies
type CommentHandler struct {
	comments *services.CommentService
	reader   *services.Reader
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(comments *services.CommentService, reader *services.Reader) *CommentHandler {
	return &CommentHandler{comments: comments, reader: reader}
}

// RegisterCommentRoutes registers comment routes under the post group
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/comment/:postId", h.GetComments)
	g.POST("/comment/:postId", h.CreateComment)
	g.PATCH("/comment/:commentId", h.EditComment)
	g.DELETE("/comment/:commentId", h.DeleteComment)
	g.PATCH("/comment/like/:commentId", h.LikeComment)
	g.PATCH("/comment/unlike/:commentId", h.UnlikeComment)
	g.GET("/comment/:commentId/liked-user", h.LikedUsers)

	g.PATCH("/comment/:commentId/reply", h.AddReply)
	g.DELETE("/comment/:commentId/replies/:replyId", h.DeleteReply)
	g.PATCH("/comment/:commentId/replies/:replyId/like", h.LikeReply)
	g.PATCH("/comment/:commentId/replies/:replyId/unlike", h.UnlikeReply)
	g.GET("/comment/:commentId/liked-user/:replyId/reply-like", h.ReplyLikedUsers)
}

func (h *CommentHandler) GetComments(c echo.Context) error {
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	comments, err := h.reader.Comments(c.Request().Context(), postID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, comments, "Comments fetched successfully")
}

func (h *CommentHandler) CreateComment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}
	var req models.CommentTextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.comments.Create(c.Request().Context(), actor, postID, req.Text)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusCreated, comment, "Comment added successfully")
}

func (h *CommentHandler) EditComment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	var req models.CommentTextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.comments.Edit(c.Request().Context(), actor, commentID, req.Text)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, comment, "Comment updated successfully")
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	if err := h.comments.Delete(c.Request().Context(), actor, commentID); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, "Comment deleted successfully")
}

type commentToggle func(context.Context, models.Actor, primitive.ObjectID) (*models.Comment, error)

func (h *CommentHandler) toggle(c echo.Context, apply commentToggle, message string) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	comment, err := apply(c.Request().Context(), actor, commentID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, comment, message)
}

func (h *CommentHandler) LikeComment(c echo.Context) error {
	return h.toggle(c, h.comments.Like, "Comment liked successfully")
}

func (h *CommentHandler) UnlikeComment(c echo.Context) error {
	return h.toggle(c, h.comments.Unlike, "Comment unliked successfully")
}

func (h *CommentHandler) LikedUsers(c echo.Context) error {
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	users, err := h.comments.LikedUsers(c.Request().Context(), commentID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Liked users fetched successfully")
}

func (h *CommentHandler) AddReply(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	var req models.CommentTextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := h.comments.AddReply(c.Request().Context(), actor, commentID, req.Text)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusCreated, reply, "Reply added successfully")
}

// replyParams reads the actor plus the comment and reply ids
func replyParams(c echo.Context) (models.Actor, primitive.ObjectID, primitive.ObjectID, error) {
	actor, err := actorOf(c)
	if err != nil {
		return actor, primitive.NilObjectID, primitive.NilObjectID, err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return actor, primitive.NilObjectID, primitive.NilObjectID, err
	}
	replyID, err := objectIDParam(c, "replyId")
	return actor, commentID, replyID, err
}

func (h *CommentHandler) DeleteReply(c echo.Context) error {
	actor, commentID, replyID, err := replyParams(c)
	if err != nil {
		return err
	}
	if err := h.comments.DeleteReply(c.Request().Context(), actor, commentID, replyID); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, "Reply deleted successfully")
}

func (h *CommentHandler) LikeReply(c echo.Context) error {
	actor, commentID, replyID, err := replyParams(c)
	if err != nil {
		return err
	}
	reply, err := h.comments.LikeReply(c.Request().Context(), actor, commentID, replyID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, reply, "Reply liked successfully")
}

func (h *CommentHandler) UnlikeReply(c echo.Context) error {
	actor, commentID, replyID, err := replyParams(c)
	if err != nil {
		return err
	}
	reply, err := h.comments.UnlikeReply(c.Request().Context(), actor, commentID, replyID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, reply, "Reply unliked successfully")
}

func (h *CommentHandler) ReplyLikedUsers(c echo.Context) error {
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	replyID, err := objectIDParam(c, "replyId")
	if err != nil {
		return err
	}
	users, err := h.comments.ReplyLikedUsers(c.Request().Context(), commentID, replyID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, users, "Liked users fetched successfully")
}
