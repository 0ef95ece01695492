package model

import (
	"context"
	"time"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/db"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is a loaded instance of a model's record. Mutation goes through
// Set and Save so the optimistic version counter loaded with the document is
// always checked on write.
type Document struct {
	model   *Model
	data    bson.M
	version int64
}

// FindDocumentByID loads a document by its path-parameter id. Returns nil
// with no error when the document does not exist.
func (m *Model) FindDocumentByID(ctx context.Context, rawID string) (*Document, error) {
	data, err := db.FindOneID(ctx, m.Collection, parseID(rawID))
	if err != nil {
		return nil, errors.Wrapf(err, "finding '%s' document", m.Name)
	}
	if data == nil {
		return nil, nil
	}
	return &Document{
		model:   m,
		data:    data,
		version: toInt64(data[terreno.VersionKey]),
	}, nil
}

// InsertDocument writes a new document for the model, assigning an id if the
// body carries none and initializing the version counter and timestamps.
func (m *Model) InsertDocument(ctx context.Context, body bson.M) (bson.M, error) {
	doc := bson.M{}
	for k, v := range body {
		doc[k] = v
	}
	if _, ok := doc[terreno.IDKey]; !ok {
		doc[terreno.IDKey] = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	doc[terreno.CreatedKey] = now
	doc[terreno.UpdatedKey] = now
	doc[terreno.VersionKey] = int64(0)

	if err := db.Insert(ctx, m.Collection, doc); err != nil {
		return nil, errors.Wrapf(err, "creating '%s' document", m.Name)
	}
	return doc, nil
}

func (d *Document) Model() *Model { return d.model }

func (d *Document) ID() any { return d.data[terreno.IDKey] }

func (d *Document) IDString() string { return IDString(d.data[terreno.IDKey]) }

func (d *Document) Data() bson.M { return d.data }

func (d *Document) Get(key string) any { return d.data[key] }

func (d *Document) Set(key string, value any) { d.data[key] = value }

// SetFields applies every key of the cleaned body to the document.
func (d *Document) SetFields(body bson.M) {
	for k, v := range body {
		d.data[k] = v
	}
}

// DeepCopy snapshots the document's current state, used to hand post hooks
// the pre-mutation document for diffing.
func (d *Document) DeepCopy() bson.M {
	raw, err := bson.Marshal(d.data)
	if err != nil {
		// marshalling a decoded bson.M back cannot fail with driver
		// produced values; fall back to a shallow copy
		out := bson.M{}
		for k, v := range d.data {
			out[k] = v
		}
		return out
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return d.data
	}
	return out
}

// Save writes the document back, bumping the updated timestamp and the
// version counter. A conflicting concurrent write surfaces as
// db.ErrVersionConflict; callers report it as a retryable request error.
func (d *Document) Save(ctx context.Context) error {
	d.data[terreno.UpdatedKey] = time.Now().UTC()
	if err := db.ReplaceVersioned(ctx, d.model.Collection, d.ID(), d.version, d.data); err != nil {
		return errors.Wrapf(err, "saving '%s' document '%s'", d.model.Name, d.IDString())
	}
	d.version++
	return nil
}

// Delete applies the model's delete semantics: a soft delete sets the
// deleted flag and saves, leaving the document retrievable in the store; a
// hard delete removes it.
func (d *Document) Delete(ctx context.Context) error {
	if d.model.SoftDelete {
		d.Set(terreno.DeletedKey, true)
		return errors.Wrap(d.Save(ctx), "soft deleting document")
	}
	if err := db.RemoveID(ctx, d.model.Collection, d.ID()); err != nil {
		return errors.Wrapf(err, "deleting '%s' document '%s'", d.model.Name, d.IDString())
	}
	return nil
}

// PopulateDocument resolves the model's populate rules on a serialized
// document, replacing reference ids with the referenced documents. Missing
// references leave the stored id untouched.
func (m *Model) PopulateDocument(ctx context.Context, doc bson.M) (bson.M, error) {
	for _, rule := range m.Populate {
		ref, ok := doc[rule.Field]
		if !ok || ref == nil {
			continue
		}
		populated, err := db.FindOneID(ctx, rule.Collection, ref)
		if err != nil {
			return nil, errors.Wrapf(err, "populating field '%s'", rule.Field)
		}
		if populated != nil {
			doc[rule.Field] = populated
		}
	}
	return doc, nil
}
