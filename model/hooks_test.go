package model

import (
	"context"
	"net/http"
	"testing"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPreCreateDefaultsToIdentity(t *testing.T) {
	m := &Model{Name: "food"}
	body := bson.M{"name": "Spinach"}
	out, err := m.RunPreCreate(context.Background(), body, nil)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestPreCreateVeto(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PreCreate = func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error) {
		return nil, nil
	}
	_, err := m.RunPreCreate(context.Background(), bson.M{}, nil)
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Create not allowed", resp.Message)
}

func TestPreCreateRewrite(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PreCreate = func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error) {
		body["calories"] = 0
		return body, nil
	}
	out, err := m.RunPreCreate(context.Background(), bson.M{"name": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out["calories"])
}

func TestTypedHookErrorsPassThrough(t *testing.T) {
	m := &Model{Name: "food"}
	typed := gimlet.ErrorResponse{StatusCode: http.StatusConflict, Message: "duplicate name"}
	m.Hooks.PreUpdate = func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error) {
		return nil, typed
	}
	_, err := m.RunPreUpdate(context.Background(), bson.M{}, nil, "d1")
	assert.Equal(t, typed, err)
}

func TestUntypedHookErrorsWrapAs400(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PreUpdate = func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error) {
		return nil, errors.New("boom")
	}
	_, err := m.RunPreUpdate(context.Background(), bson.M{}, nil, "d1")
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "preUpdate hook error on 'd1': boom", resp.Message)
}

func TestPreDeleteVetoAndRewrite(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PreDelete = func(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error) {
		return nil, nil
	}
	_, err := m.RunPreDelete(context.Background(), bson.M{"_id": "d1"}, nil)
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Delete not allowed", resp.Message)
}

func TestPostHooksWrapWithPhaseAndID(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PostUpdate = func(ctx context.Context, doc, cleaned bson.M, r *http.Request, previous bson.M) error {
		return errors.New("notify failed")
	}
	err := m.RunPostUpdate(context.Background(), bson.M{"_id": "d9"}, bson.M{}, nil, bson.M{})
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Message, "postUpdate hook error on 'd9'")
}

func TestDeprecatedPostHooks(t *testing.T) {
	m := &Model{Name: "food"}
	m.Hooks.PostList = func(ctx context.Context, docs []bson.M, r *http.Request) ([]bson.M, error) {
		return docs[:1], nil
	}
	out, err := m.RunPostList(context.Background(), []bson.M{{"a": 1}, {"b": 2}}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	m.Hooks.PostGet = func(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error) {
		doc["extra"] = true
		return doc, nil
	}
	doc, err := m.RunPostGet(context.Background(), bson.M{"_id": "d1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, doc["extra"])
}
