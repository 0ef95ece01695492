package model

import (
	"fmt"
	"net/http"
	"sort"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"go.mongodb.org/mongo-driver/bson"
)

// RoleFields declares which fields a role may read and write. A nil
// RoleFields on the transformer means the role is unrestricted; an empty
// non-nil slice means no fields.
type RoleFields struct {
	Read  []string
	Write []string
}

// Transformer filters document fields per resolved role. A nil transformer
// on a model is a pass-through.
//
// Write filtering is fatal: attempting to write a field outside the role's
// write set fails with a forbidden error naming the field. Read filtering is
// silent: fields outside the read set are dropped from the response without
// an error. Role resolution runs per document, since ownership varies across
// the documents of a list response.
type Transformer struct {
	Anonymous     *RoleFields
	Authenticated *RoleFields
	Owner         *RoleFields
	Admin         *RoleFields
}

// ResolveRole determines the acting role for a document: anonymous when
// there is no identity, admin when the identity carries the admin flag,
// owner when the document's owner field matches the identity, authenticated
// otherwise.
func ResolveRole(user *auth.User, doc bson.M, ownerField string) string {
	if user == nil {
		return terreno.RoleAnonymous
	}
	if user.Admin {
		return terreno.RoleAdmin
	}
	if doc != nil && ownerMatches(doc, ownerField, user.Id) {
		return terreno.RoleOwner
	}
	return terreno.RoleAuthenticated
}

func (t *Transformer) fieldsFor(role string) *RoleFields {
	if t == nil {
		return nil
	}
	switch role {
	case terreno.RoleAnonymous:
		return t.Anonymous
	case terreno.RoleAdmin:
		return t.Admin
	case terreno.RoleOwner:
		return t.Owner
	default:
		return t.Authenticated
	}
}

// TransformWrite checks every field of the body against the role's write
// set. Keys are checked in sorted order so the reported field is stable.
func (t *Transformer) TransformWrite(body bson.M, role string) (bson.M, error) {
	fields := t.fieldsFor(role)
	if fields == nil {
		return body, nil
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := bson.M{}
	for _, k := range keys {
		if !utility.StringSliceContains(fields.Write, k) {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusForbidden,
				Message:    fmt.Sprintf("User of role '%s' cannot write field '%s'", role, k),
			}
		}
		out[k] = body[k]
	}
	return out, nil
}

// TransformRead returns a copy of the document restricted to the role's read
// set. Disallowed fields are omitted without error.
func (t *Transformer) TransformRead(doc bson.M, role string) bson.M {
	fields := t.fieldsFor(role)
	if fields == nil {
		return doc
	}

	out := bson.M{}
	for k, v := range doc {
		if utility.StringSliceContains(fields.Read, k) {
			out[k] = v
		}
	}
	return out
}

// SerializeDocument resolves the role for the document and applies read
// filtering plus the internal bookkeeping strip. This is the single
// serialization path for reads, lists, and mutation responses.
func (m *Model) SerializeDocument(user *auth.User, doc bson.M) bson.M {
	role := ResolveRole(user, doc, m.OwnerField)
	out := bson.M{}
	for k, v := range doc {
		if k == terreno.VersionKey {
			continue
		}
		out[k] = v
	}
	return m.Transformer.TransformRead(out, role)
}
