package db

import (
	"context"
	"time"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	NoSort  bson.D = nil
	NoSkip         = 0
	NoLimit        = 0
)

func collection(name string) *mongo.Collection {
	return terreno.GetEnvironment().DB().Collection(name)
}

const defaultWriteTimeout = 30 * time.Second

// writeContext bounds a mutating operation with the configured database
// write timeout.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := defaultWriteTimeout
	if env := terreno.GetEnvironment(); env != nil {
		if s := env.Settings(); s != nil && s.Database.WriteTimeout > 0 {
			timeout = s.Database.WriteTimeout
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func addSpanAttributes(ctx context.Context, coll, op string) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("terreno.db.collection", coll),
		attribute.String("terreno.db.operation", op),
	)
}

// Insert inserts the item into the collection.
func Insert(ctx context.Context, coll string, item any) error {
	addSpanAttributes(ctx, coll, "insert")
	ctx, cancel := writeContext(ctx)
	defer cancel()

	_, err := collection(coll).InsertOne(ctx, item)
	return errors.Wrap(err, "inserting document")
}

// FindOneID returns the document with the given id, or nil with no error when
// no document matches.
func FindOneID(ctx context.Context, coll string, id any) (bson.M, error) {
	addSpanAttributes(ctx, coll, "findOne")
	out := bson.M{}
	err := collection(coll).FindOne(ctx, bson.M{terreno.IDKey: id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding document")
	}
	return out, nil
}

// FindPage returns documents matching the filter in sorted order, skipping
// skip documents and returning at most limit.
func FindPage(ctx context.Context, coll string, filter bson.M, sort bson.D, skip, limit int) ([]bson.M, error) {
	addSpanAttributes(ctx, coll, "find")
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding documents")
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "iterating cursor")
	}
	return docs, nil
}

// Count returns the number of documents matching the filter.
func Count(ctx context.Context, coll string, filter bson.M) (int64, error) {
	addSpanAttributes(ctx, coll, "count")
	n, err := collection(coll).CountDocuments(ctx, filter)
	return n, errors.Wrap(err, "counting documents")
}

// ReplaceVersioned writes doc over the document with the given id, but only
// if the stored version counter still matches version. The written document
// carries version+1. A concurrent writer that bumped the counter in between
// causes ErrVersionConflict; callers surface that as a retryable request
// error, not data corruption.
func ReplaceVersioned(ctx context.Context, coll string, id any, version int64, doc bson.M) error {
	addSpanAttributes(ctx, coll, "replace")
	ctx, cancel := writeContext(ctx)
	defer cancel()

	doc[terreno.VersionKey] = version + 1
	res, err := collection(coll).ReplaceOne(ctx, bson.M{
		terreno.IDKey:      id,
		terreno.VersionKey: version,
	}, doc)
	if err != nil {
		return errors.Wrap(err, "replacing document")
	}
	if res.MatchedCount == 0 {
		existing, err := FindOneID(ctx, coll, id)
		if err != nil {
			return errors.Wrap(err, "checking for version conflict")
		}
		if existing == nil {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// RemoveID hard-deletes the document with the given id.
func RemoveID(ctx context.Context, coll string, id any) error {
	addSpanAttributes(ctx, coll, "delete")
	ctx, cancel := writeContext(ctx)
	defer cancel()

	res, err := collection(coll).DeleteOne(ctx, bson.M{terreno.IDKey: id})
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCollections removes all documents from the named collections, for
// test setup.
func ClearCollections(ctx context.Context, collections ...string) error {
	for _, coll := range collections {
		if _, err := collection(coll).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Wrapf(err, "clearing collection '%s'", coll)
		}
	}
	return nil
}

// Watch opens a change stream over the whole database with the provided
// match pipeline. The caller owns the returned stream and must close it.
func Watch(ctx context.Context, pipeline mongo.Pipeline) (*mongo.ChangeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := terreno.GetEnvironment().DB().Watch(ctx, pipeline, opts)
	return stream, errors.Wrap(err, "opening change stream")
}
