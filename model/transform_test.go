package model

import (
	"net/http"
	"testing"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/evergreen-ci/gimlet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func foodTransformer() *Transformer {
	return &Transformer{
		Anonymous:     &RoleFields{Read: []string{"name"}},
		Authenticated: &RoleFields{Read: []string{"name", "calories"}},
		Owner:         &RoleFields{Read: []string{"name", "calories", "hidden"}, Write: []string{"name", "calories"}},
	}
}

func TestResolveRole(t *testing.T) {
	doc := bson.M{"ownerId": "u1"}

	assert.Equal(t, terreno.RoleAnonymous, ResolveRole(nil, doc, "ownerId"))
	assert.Equal(t, terreno.RoleAdmin, ResolveRole(&auth.User{Id: "a", Admin: true}, doc, "ownerId"))
	assert.Equal(t, terreno.RoleOwner, ResolveRole(&auth.User{Id: "u1"}, doc, "ownerId"))
	assert.Equal(t, terreno.RoleAuthenticated, ResolveRole(&auth.User{Id: "u2"}, doc, "ownerId"))
	// no document means ownership cannot be established
	assert.Equal(t, terreno.RoleAuthenticated, ResolveRole(&auth.User{Id: "u1"}, nil, "ownerId"))
}

func TestTransformWriteAllowed(t *testing.T) {
	tr := foodTransformer()
	out, err := tr.TransformWrite(bson.M{"name": "Spinach", "calories": 50}, terreno.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, "Spinach", out["name"])
	assert.Equal(t, 50, out["calories"])
}

func TestTransformWriteForbiddenNamesField(t *testing.T) {
	tr := foodTransformer()
	_, err := tr.TransformWrite(bson.M{"calories": 50, "ownerId": "other"}, terreno.RoleOwner)
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, resp.Message, "'ownerId'")
}

func TestTransformWriteRoleWithoutWriteSet(t *testing.T) {
	tr := foodTransformer()
	_, err := tr.TransformWrite(bson.M{"name": "x"}, terreno.RoleAnonymous)
	require.Error(t, err)
	resp, ok := err.(gimlet.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTransformWriteUnconfiguredRoleIsUnrestricted(t *testing.T) {
	tr := foodTransformer()
	out, err := tr.TransformWrite(bson.M{"hidden": true}, terreno.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, true, out["hidden"])
}

func TestTransformReadIsSilent(t *testing.T) {
	tr := foodTransformer()
	doc := bson.M{"name": "Spinach", "calories": 1, "hidden": false, "ownerId": "u1"}

	out := tr.TransformRead(doc, terreno.RoleAnonymous)
	assert.Equal(t, bson.M{"name": "Spinach"}, out)

	out = tr.TransformRead(doc, terreno.RoleAuthenticated)
	assert.Equal(t, bson.M{"name": "Spinach", "calories": 1}, out)
}

func TestNilTransformerPassesThrough(t *testing.T) {
	var tr *Transformer
	doc := bson.M{"name": "Spinach", "ownerId": "u1"}

	out, err := tr.TransformWrite(doc, terreno.RoleAnonymous)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
	assert.Equal(t, doc, tr.TransformRead(doc, terreno.RoleAnonymous))
}

func TestSerializeDocumentPerDocumentRole(t *testing.T) {
	m := &Model{
		Name:        "food",
		OwnerField:  "ownerId",
		Transformer: foodTransformer(),
	}
	user := &auth.User{Id: "u1"}

	owned := bson.M{"name": "Spinach", "calories": 1, "hidden": false, "ownerId": "u1", terreno.VersionKey: int64(3)}
	other := bson.M{"name": "Carrots", "calories": 100, "hidden": false, "ownerId": "u2"}

	assert.Equal(t, bson.M{"name": "Spinach", "calories": 1, "hidden": false}, m.SerializeDocument(user, owned))
	assert.Equal(t, bson.M{"name": "Carrots", "calories": 100}, m.SerializeDocument(user, other))
}
