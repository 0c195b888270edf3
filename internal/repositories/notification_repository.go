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

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	// Upsert stores n unless a record with the same identity tuple exists
	Upsert(ctx context.Context, n *models.Notification) error
	DeleteOne(ctx context.Context, filter models.NotificationFilter) (int64, error)
	DeleteMany(ctx context.Context, filter models.NotificationFilter) (int64, error)
	DeleteByID(ctx context.Context, userID, id primitive.ObjectID) (int64, error)
	GetByFilter(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	GetByRecipientID(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// identityIndex makes the identity tuple unique. Absent references are
// stored as null by Upsert, so they take part in the key.
func identityIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "type", Value: 1},
			{Key: "actionBy", Value: 1},
			{Key: "post", Value: 1},
			{Key: "comment", Value: 1},
			{Key: "replyId", Value: 1},
		},
		Options: options.Index().SetName("identity_unique").SetUnique(true),
	}
}

// EnsureIndexes creates the identity, recipient listing and cascade lookup indexes
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		identityIndex(),
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "post", Value: 1}}},
		{Keys: bson.D{{Key: "comment", Value: 1}, {Key: "replyId", Value: 1}}},
	})
	return err
}

func (r *MongoNotificationRepository) Upsert(ctx context.Context, n *models.Notification) error {
	now := time.Now()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	// identity fields are copied from the filter on insert
	insert := bson.M{
		"_id":       n.ID,
		"read":      false,
		"createdAt": now,
		"updatedAt": now,
	}
	if n.ReplyText != "" {
		insert["replyText"] = n.ReplyText
	}
	_, err := r.collection.UpdateOne(ctx,
		filterToBSON(n.Identity()),
		bson.M{"$setOnInsert": insert},
		options.Update().SetUpsert(true),
	)
	return ignoreDuplicate(err)
}

// ignoreDuplicate treats losing a concurrent upsert race as success; the
// winner stored the same identity tuple
func ignoreDuplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// GetByFilter lists the notifications selected by filter
func (r *MongoNotificationRepository) GetByFilter(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	cursor, err := r.collection.Find(ctx, filterToBSON(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *MongoNotificationRepository) DeleteOne(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	res, err := r.collection.DeleteOne(ctx, filterToBSON(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoNotificationRepository) DeleteMany(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, filterToBSON(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByID removes one notification owned by userID
func (r *MongoNotificationRepository) DeleteByID(ctx context.Context, userID, id primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// GetByRecipientID lists a user's notifications, newest first
func (r *MongoNotificationRepository) GetByRecipientID(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *MongoNotificationRepository) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
}

func (r *MongoNotificationRepository) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// filterToBSON translates a filter; {field: null} matches absent fields
func filterToBSON(f models.NotificationFilter) bson.M {
	m := bson.M{}
	if f.UserID != nil {
		m["userId"] = *f.UserID
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if f.ActionBy != nil {
		m["actionBy"] = *f.ActionBy
	}
	ref := func(key string, v *primitive.ObjectID, exact bool) {
		switch {
		case v != nil:
			m[key] = *v
		case exact:
			m[key] = nil
		}
	}
	ref("post", f.Post, f.Exact)
	ref("comment", f.Comment, f.Exact)
	ref("replyId", f.ReplyID, f.Exact || f.WithoutReply)
	return m
}
