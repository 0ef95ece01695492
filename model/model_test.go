package model

import (
	"testing"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validFoodModel() *Model {
	return &Model{
		Name:       "food",
		Collection: "foods",
		RoutePath:  "/food",
		Permissions: Permissions{
			List:           Rule{IsAny},
			Create:         Rule{IsAuthenticated},
			Read:           Rule{IsAny},
			Update:         Rule{IsOwnerOf("ownerId")},
			Delete:         Rule{IsAdmin},
			AllowAnonymous: true,
		},
	}
}

func TestModelValidate(t *testing.T) {
	require.NoError(t, validFoodModel().Validate())

	m := validFoodModel()
	m.Permissions.Update = nil
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions for 'update' must be set")

	m = validFoodModel()
	m.RoutePath = "food"
	assert.Error(t, m.Validate())

	m = validFoodModel()
	m.Realtime = &RealtimeOptions{Methods: []string{"list"}}
	assert.Error(t, m.Validate())
}

func TestModelLimits(t *testing.T) {
	m := validFoodModel()
	assert.Equal(t, terreno.DefaultPageLimit, m.EffectiveDefaultLimit())
	assert.Equal(t, terreno.MaxPageLimit, m.EffectiveMaxLimit())

	m.DefaultLimit = 25
	m.MaxLimit = 50
	assert.Equal(t, 25, m.EffectiveDefaultLimit())
	assert.Equal(t, 50, m.EffectiveMaxLimit())
}

func TestModelLimitsFallBackToSettings(t *testing.T) {
	prev := terreno.GetEnvironment()
	defer terreno.SetEnvironment(prev)
	terreno.SetEnvironment(&testutil.MockEnvironment{MockSettings: &terreno.Settings{
		API: terreno.APISettings{DefaultLimit: 40, MaxLimit: 80},
	}})

	m := validFoodModel()
	assert.Equal(t, 40, m.EffectiveDefaultLimit())
	assert.Equal(t, 80, m.EffectiveMaxLimit())

	// per-model limits still win over the configured defaults
	m.DefaultLimit = 10
	m.MaxLimit = 20
	assert.Equal(t, 10, m.EffectiveDefaultLimit())
	assert.Equal(t, 20, m.EffectiveMaxLimit())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(validFoodModel()))

	// duplicate collection and name both fail
	assert.Error(t, r.Register(validFoodModel()))

	other := validFoodModel()
	other.Name = "meal"
	other.Collection = "meals"
	other.RoutePath = "/meal"
	require.NoError(t, r.Register(other))

	assert.Equal(t, "food", r.ByCollection("foods").Name)
	assert.Nil(t, r.ByCollection("unregistered"))
	assert.Len(t, r.Models(), 2)

	r.Freeze()
	late := validFoodModel()
	late.Name = "late"
	late.Collection = "lates"
	assert.Error(t, r.Register(late))
}

func TestRealtimeEnabled(t *testing.T) {
	m := validFoodModel()
	assert.False(t, m.RealtimeEnabled(terreno.MethodCreate))

	m.Realtime = &RealtimeOptions{Methods: []string{terreno.MethodCreate, terreno.MethodDelete}}
	assert.True(t, m.RealtimeEnabled(terreno.MethodCreate))
	assert.False(t, m.RealtimeEnabled(terreno.MethodUpdate))
}

func TestIDValuesEqual(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.True(t, IDValuesEqual(oid, oid.Hex()))
	assert.False(t, IDValuesEqual(oid, primitive.NewObjectID().Hex()))
	assert.True(t, IDValuesEqual("abc", "abc"))
	// a 24-char non-hex string must not be mistaken for an ObjectID
	assert.True(t, IDValuesEqual("zzzzzzzzzzzzzzzzzzzzzzzz", "zzzzzzzzzzzzzzzzzzzzzzzz"))
	assert.False(t, IDValuesEqual(nil, "abc"))
}

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()
	parsed := parseID(oid.Hex())
	assert.Equal(t, oid, parsed)

	assert.Equal(t, "plain-id", parseID("plain-id"))
	// hex-shaped but wrong length stays a string
	assert.Equal(t, "abcdef", parseID("abcdef"))
}
