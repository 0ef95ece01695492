package db

import (
	"context"
	"testing"
	"time"

	"github.com/FlourishHealth/terreno-sub002/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestWriteContextAppliesDeadline(t *testing.T) {
	ctx, cancel := writeContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.After(time.Now()))
	assert.True(t, deadline.Before(time.Now().Add(defaultWriteTimeout+time.Second)))
}

func TestFindOneIDMissingDocument(t *testing.T) {
	testutil.RequireEnvironment(t)
	ctx := context.Background()
	require.NoError(t, ClearCollections(ctx, "items"))

	doc, err := FindOneID(ctx, "items", "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestReplaceVersioned(t *testing.T) {
	testutil.RequireEnvironment(t)
	ctx := context.Background()
	require.NoError(t, ClearCollections(ctx, "items"))
	require.NoError(t, Insert(ctx, "items", bson.M{"_id": "a", "name": "one", "__v": int64(0)}))

	require.NoError(t, ReplaceVersioned(ctx, "items", "a", 0, bson.M{"_id": "a", "name": "two"}))

	doc, err := FindOneID(ctx, "items", "a")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "two", doc["name"])
	assert.EqualValues(t, 1, doc["__v"])

	// a write against the stale version loses
	err = ReplaceVersioned(ctx, "items", "a", 0, bson.M{"_id": "a", "name": "stale"})
	assert.True(t, IsVersionConflict(err))

	err = ReplaceVersioned(ctx, "items", "missing", 0, bson.M{"_id": "missing"})
	assert.True(t, IsNotFound(err))
}

func TestRemoveID(t *testing.T) {
	testutil.RequireEnvironment(t)
	ctx := context.Background()
	require.NoError(t, ClearCollections(ctx, "items"))
	require.NoError(t, Insert(ctx, "items", bson.M{"_id": "a"}))

	require.NoError(t, RemoveID(ctx, "items", "a"))
	assert.True(t, IsNotFound(RemoveID(ctx, "items", "a")))
}

func TestFindPageWindow(t *testing.T) {
	testutil.RequireEnvironment(t)
	ctx := context.Background()
	require.NoError(t, ClearCollections(ctx, "items"))
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, Insert(ctx, "items", bson.M{"_id": name, "name": name}))
	}

	docs, err := FindPage(ctx, "items", bson.M{}, bson.D{{Key: "name", Value: 1}}, 1, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0]["name"])
	assert.Equal(t, "c", docs[1]["name"])

	n, err := Count(ctx, "items", bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}
