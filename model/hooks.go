package model

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"go.mongodb.org/mongo-driver/bson"
)

// Hooks are the optional lifecycle callbacks around create, update, and
// delete. A pre hook may rewrite its working body by returning a new one, or
// veto the operation by returning nil, which resolves as a 403. Errors from
// hooks that are already gimlet.ErrorResponse values pass through untouched;
// anything else is wrapped as a 400 naming the failing phase.
//
// Post hooks run after the store write has committed. A failing post hook
// does not roll the write back; the created or updated document stays
// persisted and the error surfaces to the caller.
type Hooks struct {
	PreCreate  func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error)
	PostCreate func(ctx context.Context, doc bson.M, r *http.Request) error
	PreUpdate  func(ctx context.Context, body bson.M, r *http.Request) (bson.M, error)
	PostUpdate func(ctx context.Context, doc, cleanedBody bson.M, r *http.Request, previous bson.M) error
	PreDelete  func(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error)
	PostDelete func(ctx context.Context, r *http.Request, doc bson.M) error

	// Deprecated: PostGet and PostList predate the unified response
	// serialization path and remain only for backward compatibility.
	PostGet  func(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error)
	PostList func(ctx context.Context, docs []bson.M, r *http.Request) ([]bson.M, error)
}

func hookVeto(action string) gimlet.ErrorResponse {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusForbidden,
		Message:    fmt.Sprintf("%s not allowed", action),
	}
}

// wrapHookErr passes typed API errors through and wraps everything else as a
// 400 with a phase-identifying prefix, so the failing hook is always visible
// in logs and responses.
func wrapHookErr(err error, phase, id string) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(gimlet.ErrorResponse); ok {
		return apiErr
	}
	msg := fmt.Sprintf("%s hook error: %s", phase, err.Error())
	if id != "" {
		msg = fmt.Sprintf("%s hook error on '%s': %s", phase, id, err.Error())
	}
	return gimlet.ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

// RunPreCreate applies the preCreate hook to the incoming body.
func (m *Model) RunPreCreate(ctx context.Context, body bson.M, r *http.Request) (bson.M, error) {
	if m.Hooks.PreCreate == nil {
		return body, nil
	}
	out, err := m.Hooks.PreCreate(ctx, body, r)
	if err != nil {
		return nil, wrapHookErr(err, "preCreate", "")
	}
	if out == nil {
		return nil, hookVeto("Create")
	}
	return out, nil
}

func (m *Model) RunPostCreate(ctx context.Context, doc bson.M, r *http.Request) error {
	if m.Hooks.PostCreate == nil {
		return nil
	}
	return wrapHookErr(m.Hooks.PostCreate(ctx, doc, r), "postCreate", IDString(doc["_id"]))
}

// RunPreUpdate applies the preUpdate hook to the changed slice of the
// document. It runs once per PATCH and once per array sub-resource mutation,
// receiving only the fields being changed in either case.
func (m *Model) RunPreUpdate(ctx context.Context, body bson.M, r *http.Request, id string) (bson.M, error) {
	if m.Hooks.PreUpdate == nil {
		return body, nil
	}
	out, err := m.Hooks.PreUpdate(ctx, body, r)
	if err != nil {
		return nil, wrapHookErr(err, "preUpdate", id)
	}
	if out == nil {
		return nil, hookVeto("Update")
	}
	return out, nil
}

func (m *Model) RunPostUpdate(ctx context.Context, doc, cleanedBody bson.M, r *http.Request, previous bson.M) error {
	if m.Hooks.PostUpdate == nil {
		return nil
	}
	err := m.Hooks.PostUpdate(ctx, doc, cleanedBody, r, previous)
	return wrapHookErr(err, "postUpdate", IDString(doc["_id"]))
}

func (m *Model) RunPreDelete(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error) {
	if m.Hooks.PreDelete == nil {
		return doc, nil
	}
	out, err := m.Hooks.PreDelete(ctx, doc, r)
	if err != nil {
		return nil, wrapHookErr(err, "preDelete", IDString(doc["_id"]))
	}
	if out == nil {
		return nil, hookVeto("Delete")
	}
	return out, nil
}

func (m *Model) RunPostDelete(ctx context.Context, r *http.Request, doc bson.M) error {
	if m.Hooks.PostDelete == nil {
		return nil
	}
	return wrapHookErr(m.Hooks.PostDelete(ctx, r, doc), "postDelete", IDString(doc["_id"]))
}

func (m *Model) RunPostGet(ctx context.Context, doc bson.M, r *http.Request) (bson.M, error) {
	if m.Hooks.PostGet == nil {
		return doc, nil
	}
	out, err := m.Hooks.PostGet(ctx, doc, r)
	if err != nil {
		return nil, wrapHookErr(err, "postGet", IDString(doc["_id"]))
	}
	return out, nil
}

func (m *Model) RunPostList(ctx context.Context, docs []bson.M, r *http.Request) ([]bson.M, error) {
	if m.Hooks.PostList == nil {
		return docs, nil
	}
	out, err := m.Hooks.PostList(ctx, docs, r)
	if err != nil {
		return nil, wrapHookErr(err, "postList", "")
	}
	return out, nil
}
