package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoCollection adapts a *mongo.Collection to the Collection interface.
type mongoCollection struct {
	col *mongo.Collection
}

func openMongo(ctx context.Context, uri, dbName string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(2 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	st := &Store{
		Users:      &mongoCollection{col: db.Collection("users")},
		Students:   &mongoCollection{col: db.Collection("students")},
		Attendance: &mongoCollection{col: db.Collection("attendance")},
		Sessions:   &mongoCollection{col: db.Collection("attendance_sessions")},
		Links:      &mongoCollection{col: db.Collection("attendance_links")},
		Backend:    BackendMongo,
		close:      client.Disconnect,
	}
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return st, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	sparseUnique := options.Index().SetUnique(true).SetSparse(true)
	ttl := options.Index().SetExpireAfterSeconds(0)

	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: sparseUnique},
			{Keys: bson.D{{Key: "password_reset_token", Value: 1}}},
		},
		"students": {
			{Keys: bson.D{{Key: "student_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
		},
		"attendance": {
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "date", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
		},
		"attendance_sessions": {
			{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
		"attendance_links": {
			{Keys: bson.D{{Key: "link_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

func toBSON(m map[string]any) bson.M {
	out := bson.M{}
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = toBSON(nested)
			continue
		}
		if nested, ok := v.(Filter); ok {
			out[k] = toBSON(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func (c *mongoCollection) FindOne(ctx context.Context, filter Filter, out any) error {
	err := c.col.FindOne(ctx, toBSON(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (c *mongoCollection) Find(ctx context.Context, filter Filter, out any) error {
	cur, err := c.col.Find(ctx, toBSON(filter))
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := c.col.InsertOne(ctx, doc)
	return err
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter Filter, update Update, upsert bool) error {
	_, err := c.col.UpdateOne(ctx, toBSON(filter), toBSON(update), options.Update().SetUpsert(upsert))
	return err
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error) {
	res, err := c.col.UpdateMany(ctx, toBSON(filter), toBSON(update))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	res, err := c.col.DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	return c.col.CountDocuments(ctx, toBSON(filter))
}
