package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a media post stored in MongoDB
type Post struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Owner     primitive.ObjectID   `json:"owner" bson:"owner"`
	URL       string               `json:"url" bson:"url"`
	Caption   string               `json:"caption" bson:"caption"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	PublicID  string               `json:"publicId" bson:"publicId"`
	Edit      bool                 `json:"edit" bson:"edit"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// EditPostRequest defines the request body for editing a caption
type EditPostRequest struct {
	Caption string `json:"caption" validate:"required,min=1,max=2200"`
}

// PostView is the denormalized read view of a post
type PostView struct {
	ID            primitive.ObjectID `json:"_id"`
	Owner         UserPreview        `json:"owner"`
	URL           string             `json:"url"`
	Caption       string             `json:"caption"`
	Likes         []UserPreview      `json:"likes"`
	Comments      []CommentView      `json:"comments,omitempty"`
	TotalComments *int               `json:"totalComments,omitempty"`
	Edit          bool               `json:"edit"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// PostPage is one page of a post listing
type PostPage struct {
	Docs        []PostView `json:"docs"`
	TotalDocs   int64      `json:"totalDocs"`
	Limit       int        `json:"limit"`
	Page        int        `json:"page"`
	TotalPages  int        `json:"totalPages"`
	HasNextPage bool       `json:"hasNextPage"`
	HasPrevPage bool       `json:"hasPrevPage"`
}
