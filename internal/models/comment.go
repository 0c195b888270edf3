package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment represents a comment on a post, with its replies embedded
type Comment struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	PostID    primitive.ObjectID   `json:"postId" bson:"postId"`
	User      primitive.ObjectID   `json:"user" bson:"user"`
	Text      string               `json:"text" bson:"text"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	Edit      bool                 `json:"edit" bson:"edit"`
	Replies   []Reply              `json:"replies" bson:"replies"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Reply is embedded in its parent comment's replies list
type Reply struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id"`
	Owner     primitive.ObjectID   `json:"owner" bson:"owner"`
	Text      string               `json:"text" bson:"text"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// FindReply returns the reply with the given id, if present
func (c *Comment) FindReply(id primitive.ObjectID) (*Reply, bool) {
	for i := range c.Replies {
		if c.Replies[i].ID == id {
			return &c.Replies[i], true
		}
	}
	return nil, false
}

// CommentTextRequest is the body of comment create/edit and reply add
type CommentTextRequest struct {
	Text string `json:"text" validate:"required,min=1,max=1000"`
}

// CommentView is a comment with author and reply-author previews attached
type CommentView struct {
	ID        primitive.ObjectID   `json:"_id"`
	PostID    primitive.ObjectID   `json:"postId"`
	User      UserPreview          `json:"user"`
	Text      string               `json:"text"`
	Likes     []primitive.ObjectID `json:"likes"`
	Edit      bool                 `json:"edit"`
	Replies   []ReplyView          `json:"replies"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// ReplyView is a reply with its owner preview attached
type ReplyView struct {
	ID        primitive.ObjectID   `json:"_id"`
	Owner     UserPreview          `json:"owner"`
	Text      string               `json:"text"`
	Likes     []primitive.ObjectID `json:"likes"`
	CreatedAt time.Time            `json:"createdAt"`
}
