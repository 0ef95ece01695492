package model

import (
	"net/http"
	"testing"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func openPermissions() Permissions {
	return Permissions{
		List:           Rule{IsAny},
		Create:         Rule{IsAuthenticated},
		Read:           Rule{IsAny},
		Update:         Rule{IsOwnerOf("ownerId")},
		Delete:         Rule{IsAdmin},
		AllowAnonymous: true,
	}
}

func TestAnonymousGate(t *testing.T) {
	p := openPermissions()
	assert.True(t, p.CanPerform(terreno.MethodList, nil, nil))

	p.AllowAnonymous = false
	// the gate applies before any predicate runs
	assert.False(t, p.CanPerform(terreno.MethodList, nil, nil))
	assert.True(t, p.CanPerform(terreno.MethodList, &auth.User{Id: "u1"}, nil))
}

func TestPredicatesAreANDed(t *testing.T) {
	p := openPermissions()
	p.Create = Rule{IsAuthenticated, IsAdmin}

	assert.False(t, p.CanPerform(terreno.MethodCreate, &auth.User{Id: "u1"}, nil))
	assert.True(t, p.CanPerform(terreno.MethodCreate, &auth.User{Id: "u1", Admin: true}, nil))
}

func TestObjectLevelOwnership(t *testing.T) {
	p := openPermissions()
	doc := bson.M{"ownerId": "u1"}

	// method-level passes for any authenticated user, the object-level
	// check settles ownership
	assert.True(t, p.CanPerform(terreno.MethodUpdate, &auth.User{Id: "u2"}, nil))
	assert.False(t, p.CanPerform(terreno.MethodUpdate, &auth.User{Id: "u2"}, doc))
	assert.True(t, p.CanPerform(terreno.MethodUpdate, &auth.User{Id: "u1"}, doc))
	assert.True(t, p.CanPerform(terreno.MethodUpdate, &auth.User{Id: "x", Admin: true}, doc))
}

func TestPermissionErrors(t *testing.T) {
	err := PermissionError(terreno.MethodDelete, &auth.User{Id: "u1"}, "d1")
	assert.Equal(t, http.StatusMethodNotAllowed, err.StatusCode)
	assert.Contains(t, err.Message, "u1")
	assert.Contains(t, err.Message, "d1")

	objErr := ObjectPermissionError(terreno.MethodUpdate, nil, "d2")
	assert.Equal(t, http.StatusForbidden, objErr.StatusCode)
	assert.Contains(t, objErr.Message, "anonymous user")
	assert.Contains(t, objErr.Message, "d2")
}

func TestMissingRuleFails(t *testing.T) {
	p := Permissions{AllowAnonymous: true}
	require.False(t, p.CanPerform(terreno.MethodList, nil, nil))
	require.False(t, p.CanPerform("bogus", nil, nil))
}
