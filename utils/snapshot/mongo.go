package snapshot

import (
	"context"
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// record MongoDB中的一条存档
type record struct {
	ID     int32 `bson:"id"`
	Record `bson:",inline"`
}

// MongoStore MongoDB存档，每辆车一条文档，以id为键
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoStore 连接MongoDB
func NewMongoStore(uri, db, col string) *MongoStore {
	client := mongoutil.NewClient(uri)
	return &MongoStore{
		client: client,
		col:    client.Database(db).Collection(col),
	}
}

func (s *MongoStore) Save(ctx context.Context, id int32, r Record) error {
	_, err := s.col.ReplaceOne(
		ctx,
		bson.M{"id": id},
		record{ID: id, Record: r},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("snapshot: save vehicle %d: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, id int32) (Record, bool, error) {
	var r record
	err := s.col.FindOne(ctx, bson.M{"id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("snapshot: load vehicle %d: %w", id, err)
	}
	return r.Record, true, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
