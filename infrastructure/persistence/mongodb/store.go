package mongodb

import (
	"context"
	"errors"
	"fmt"

	"internship-backend/application/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements ports.DocumentStore over a MongoDB database. The
// document id is stored as the "_id" field.
type Store struct {
	db *mongo.Database
}

// NewStore creates a store over db.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// List returns documents newest first.
func (s *Store) List(ctx context.Context, collection string, opts ports.ListOptions) ([]ports.Document, error) {
	filter := listFilter(opts.Filter)
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(opts.Offset))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]ports.Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, byID(id)).Decode(&raw)
	if err != nil {
		return nil, notFound(collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc ports.Document) (ports.Document, error) {
	if doc.ID() == "" {
		return nil, errors.New("document has no id")
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, toBSON(doc)); err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return doc, nil
}

// Update applies patch with $set and returns the updated document.
func (s *Store) Update(ctx context.Context, collection, id string, patch ports.Document) (ports.Document, error) {
	set := toBSON(patch)
	delete(set, "_id")
	if len(set) == 0 {
		return s.Get(ctx, collection, id)
	}

	var raw bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx,
		byID(id),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if err != nil {
		return nil, notFound(collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	return nil
}

func notFound(collection, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}

func listFilter(fields map[string]string) bson.M {
	filter := bson.M{}
	for k, v := range fields {
		if k == "id" {
			filter["_id"] = idMatch(v)
			continue
		}
		filter[k] = v
	}
	return filter
}

func byID(id string) bson.M {
	return bson.M{"_id": idMatch(id)}
}

// idMatch matches an id as given and, when it is a hex ObjectID, the
// ObjectID form that documents written by other clients carry.
func idMatch(id string) interface{} {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return bson.M{"$in": bson.A{oid, id}}
}

func fieldName(key string) string {
	if key == "id" {
		return "_id"
	}
	return key
}

func toBSON(doc ports.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[fieldName(k)] = v
	}
	return out
}

func fromBSON(raw bson.M) ports.Document {
	out := make(ports.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			out["id"] = idString(v)
			continue
		}
		out[k] = v
	}
	return out
}

// idString renders ids of documents written by other clients, which may
// use ObjectIDs.
func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
