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

// CommentRepository defines the interface for comment and reply operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	GetCommentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error)
	GetCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error)
	CountByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
	UpdateText(ctx context.Context, id primitive.ObjectID, text string) error
	DeleteComment(ctx context.Context, id primitive.ObjectID) error
	DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error)
	AddLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error)
	RemoveLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error)
	AddReply(ctx context.Context, commentID primitive.ObjectID, reply *models.Reply) error
	RemoveReply(ctx context.Context, commentID, replyID primitive.ObjectID) (bool, error)
	AddReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error)
	RemoveReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error)
}

// MongoCommentRepository implements CommentRepository for MongoDB
type MongoCommentRepository struct {
	collection *mongo.Collection
}

// NewMongoCommentRepository creates a new MongoCommentRepository
func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{collection: db.Collection("comments")}
}

// EnsureIndexes creates the per-post listing index
func (r *MongoCommentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

// CreateComment creates a new comment in MongoDB
func (r *MongoCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now()
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Likes == nil {
		comment.Likes = []primitive.ObjectID{}
	}
	if comment.Replies == nil {
		comment.Replies = []models.Reply{}
	}
	_, err := r.collection.InsertOne(ctx, comment)
	return mapErr(err)
}

// GetCommentByID retrieves a comment with its replies
func (r *MongoCommentRepository) GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, mapErr(err)
	}
	return &comment, nil
}

// GetCommentsByIDs retrieves the comments with the given ids
func (r *MongoCommentRepository) GetCommentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error) {
	if len(ids) == 0 {
		return []models.Comment{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// GetCommentsByPost retrieves the comments of a post, newest first
func (r *MongoCommentRepository) GetCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"postId": postID}, findOptions)
}

// CountByPosts counts comments per post in one aggregation
func (r *MongoCommentRepository) CountByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	counts := make(map[primitive.ObjectID]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"postId": bson.M{"$in": postIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$postId", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

// UpdateText rewrites a comment body and flags it as edited
func (r *MongoCommentRepository) UpdateText(ctx context.Context, id primitive.ObjectID, text string) error {
	update := bson.M{"$set": bson.M{"text": text, "edit": true, "updatedAt": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment deletes one comment with its replies
func (r *MongoCommentRepository) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPost deletes every comment of a post
func (r *MongoCommentRepository) DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"postId": postID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// AddLike adds userID to a comment's likes and reports whether the set changed
func (r *MongoCommentRepository) AddLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error) {
	return r.update(ctx, bson.M{"_id": commentID}, bson.M{"$addToSet": bson.M{"likes": userID}})
}

// RemoveLike removes userID from a comment's likes
func (r *MongoCommentRepository) RemoveLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error) {
	return r.update(ctx, bson.M{"_id": commentID}, bson.M{"$pull": bson.M{"likes": userID}})
}

// AddReply appends a reply to the comment's replies
func (r *MongoCommentRepository) AddReply(ctx context.Context, commentID primitive.ObjectID, reply *models.Reply) error {
	now := time.Now()
	if reply.ID.IsZero() {
		reply.ID = primitive.NewObjectID()
	}
	reply.CreatedAt = now
	reply.UpdatedAt = now
	if reply.Likes == nil {
		reply.Likes = []primitive.ObjectID{}
	}
	_, err := r.update(ctx, bson.M{"_id": commentID}, bson.M{"$push": bson.M{"replies": reply}})
	return err
}

// RemoveReply pulls one reply out of the comment
func (r *MongoCommentRepository) RemoveReply(ctx context.Context, commentID, replyID primitive.ObjectID) (bool, error) {
	return r.update(ctx, bson.M{"_id": commentID}, bson.M{"$pull": bson.M{"replies": bson.M{"_id": replyID}}})
}

// AddReplyLike adds userID to one reply's likes
func (r *MongoCommentRepository) AddReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": commentID, "replies._id": replyID}
	return r.update(ctx, filter, bson.M{"$addToSet": bson.M{"replies.$.likes": userID}})
}

// RemoveReplyLike removes userID from one reply's likes
func (r *MongoCommentRepository) RemoveReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": commentID, "replies._id": replyID}
	return r.update(ctx, filter, bson.M{"$pull": bson.M{"replies.$.likes": userID}})
}

func (r *MongoCommentRepository) update(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoCommentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Comment, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
