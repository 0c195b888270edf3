package repositories

import (
	"context"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	GetPostsByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Post, error)
	// ListPosts pages posts newest first. A nil owners slice lists every post.
	ListPosts(ctx context.Context, owners []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error)
	UpdateCaption(ctx context.Context, id primitive.ObjectID, caption string) error
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	AddLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the indexes the feed queries rely on
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return mapErr(err)
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, mapErr(err)
	}
	return &post, nil
}

// GetPostsByIDs retrieves the posts with the given ids, newest first
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// GetPostsByOwner retrieves every post of one user, newest first
func (r *MongoPostRepository) GetPostsByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Post, error) {
	return r.find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListPosts retrieves a page of posts and the total count of the listing
func (r *MongoPostRepository) ListPosts(ctx context.Context, owners []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	filter := bson.M{}
	if owners != nil {
		filter["owner"] = bson.M{"$in": owners}
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	posts, err := r.find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// UpdateCaption rewrites a caption and flags the post as edited
func (r *MongoPostRepository) UpdateCaption(ctx context.Context, id primitive.ObjectID, caption string) error {
	update := bson.M{
		"$set": bson.M{
			"caption":   caption,
			"edit":      true,
			"updatedAt": time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLike adds userID to the post's likes. It reports whether the set changed.
func (r *MongoPostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	return r.toggle(ctx, postID, "$addToSet", userID)
}

// RemoveLike removes userID from the post's likes
func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	return r.toggle(ctx, postID, "$pull", userID)
}

func (r *MongoPostRepository) toggle(ctx context.Context, postID primitive.ObjectID, op string, userID primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{op: bson.M{"likes": userID}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
