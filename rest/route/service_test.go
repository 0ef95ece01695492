package route

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FlourishHealth/terreno-sub002/model"
	"github.com/FlourishHealth/terreno-sub002/realtime"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRegistry(t *testing.T) *model.Registry {
	registry := model.NewRegistry()
	require.NoError(t, registry.Register(&model.Model{
		Name:       "food",
		Collection: "foods",
		RoutePath:  "/food",
		Permissions: model.Permissions{
			List:   model.Rule{model.IsAny},
			Create: model.Rule{model.IsAny},
			Read:   model.Rule{model.IsAny},
			Update: model.Rule{model.IsAny},
			Delete: model.Rule{model.IsAny},
		},
	}))
	registry.Freeze()
	return registry
}

func TestAttachHandlerMountsWebsocketEndpoint(t *testing.T) {
	handler, err := AttachHandler(mux.NewRouter(), openRegistry(t), realtime.NewHub())
	require.NoError(t, err)

	// the endpoint is reachable; an unauthenticated upgrade is refused by
	// the hub rather than falling through to the API's 404
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAttachHandlerWithoutHub(t *testing.T) {
	handler, err := AttachHandler(mux.NewRouter(), openRegistry(t), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
