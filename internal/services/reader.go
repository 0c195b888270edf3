package services

import (
	"context"
	"sort"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultPageSize = 8

// Reader assembles denormalized post and comment views. It never writes.
type Reader struct {
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	users    repositories.UserRepository
	pageSize int
}

func NewReader(posts repositories.PostRepository, comments repositories.CommentRepository, users repositories.UserRepository, pageSize int) *Reader {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Reader{posts: posts, comments: comments, users: users, pageSize: pageSize}
}

// PostView returns the detail view of a post with its comments attached
func (r *Reader) PostView(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error) {
	post, err := r.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	comments, err := r.comments.GetCommentsByPost(ctx, post.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch comments", err)
	}

	ids := append([]primitive.ObjectID{post.Owner}, post.Likes...)
	ids = append(ids, commentAuthors(comments)...)
	idx, err := r.userIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := postView(idx, post)
	view.Comments = commentViews(idx, comments)
	return &view, nil
}

// Comments lists the comments of a post, newest first with replies oldest first
func (r *Reader) Comments(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	if _, err := r.posts.GetPostByID(ctx, postID); err != nil {
		return nil, lookupErr(err, "post")
	}
	comments, err := r.comments.GetCommentsByPost(ctx, postID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch comments", err)
	}
	idx, err := r.userIndex(ctx, commentAuthors(comments))
	if err != nil {
		return nil, err
	}
	return commentViews(idx, comments), nil
}

// Feed pages through every post, newest first
func (r *Reader) Feed(ctx context.Context, page int) (*models.PostPage, error) {
	return r.page(ctx, nil, page)
}

// Home pages through the posts of the users the actor follows plus the actor's own
func (r *Reader) Home(ctx context.Context, actor models.Actor, page int) (*models.PostPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	me, err := r.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	owners := append([]primitive.ObjectID{me.ID}, me.Following...)
	return r.page(ctx, owners, page)
}

// Bookmarks lists the actor's saved posts in the order they were saved
func (r *Reader) Bookmarks(ctx context.Context, actor models.Actor) ([]models.PostView, error) {
	return r.savedList(ctx, actor, func(u *models.User) []primitive.ObjectID { return u.Bookmarks })
}

// LikedPosts lists the posts the actor has liked
func (r *Reader) LikedPosts(ctx context.Context, actor models.Actor) ([]models.PostView, error) {
	return r.savedList(ctx, actor, func(u *models.User) []primitive.ObjectID { return u.LikedPosts })
}

func (r *Reader) savedList(ctx context.Context, actor models.Actor, pick func(*models.User) []primitive.ObjectID) ([]models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	me, err := r.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	ids := pick(me)
	found, err := r.posts.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch posts", err)
	}

	byID := make(map[primitive.ObjectID]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return r.listViews(ctx, posts)
}

func (r *Reader) page(ctx context.Context, owners []primitive.ObjectID, page int) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	limit := int64(r.pageSize)
	posts, total, err := r.posts.ListPosts(ctx, owners, int64(page-1)*limit, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch posts", err)
	}
	docs, err := r.listViews(ctx, posts)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + limit - 1) / limit)
	return &models.PostPage{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       r.pageSize,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

// listViews builds list views: comments are replaced by their count
func (r *Reader) listViews(ctx context.Context, posts []models.Post) ([]models.PostView, error) {
	postIDs := make([]primitive.ObjectID, 0, len(posts))
	var userIDs []primitive.ObjectID
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		userIDs = append(userIDs, p.Owner)
		userIDs = append(userIDs, p.Likes...)
	}
	counts, err := r.comments.CountByPosts(ctx, postIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to count comments", err)
	}
	idx, err := r.userIndex(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.PostView, 0, len(posts))
	for i := range posts {
		view := postView(idx, &posts[i])
		total := counts[posts[i].ID]
		view.TotalComments = &total
		out = append(out, view)
	}
	return out, nil
}

func (r *Reader) userIndex(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	if len(ids) == 0 {
		return map[primitive.ObjectID]*models.User{}, nil
	}
	users, err := r.users.GetUsersByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, apperrors.Internal("failed to fetch users", err)
	}
	return indexUsers(users), nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func commentAuthors(comments []models.Comment) []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, c := range comments {
		ids = append(ids, c.User)
		for _, reply := range c.Replies {
			ids = append(ids, reply.Owner)
		}
	}
	return ids
}

func postView(idx map[primitive.ObjectID]*models.User, p *models.Post) models.PostView {
	return models.PostView{
		ID:        p.ID,
		Owner:     previewOf(idx, p.Owner),
		URL:       p.URL,
		Caption:   p.Caption,
		Likes:     previews(idx, p.Likes),
		Edit:      p.Edit,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func commentViews(idx map[primitive.ObjectID]*models.User, comments []models.Comment) []models.CommentView {
	out := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		replies := make([]models.ReplyView, 0, len(c.Replies))
		for _, reply := range c.Replies {
			replies = append(replies, models.ReplyView{
				ID:        reply.ID,
				Owner:     previewOf(idx, reply.Owner),
				Text:      reply.Text,
				Likes:     idsOrEmpty(reply.Likes),
				CreatedAt: reply.CreatedAt,
			})
		}
		sort.SliceStable(replies, func(i, j int) bool {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		})
		out = append(out, models.CommentView{
			ID:        c.ID,
			PostID:    c.PostID,
			User:      previewOf(idx, c.User),
			Text:      c.Text,
			Likes:     idsOrEmpty(c.Likes),
			Edit:      c.Edit,
			Replies:   replies,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return out
}

func idsOrEmpty(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}
