package route

import (
	"net/http"

	"github.com/FlourishHealth/terreno-sub002/model"
	"github.com/FlourishHealth/terreno-sub002/realtime"
	"github.com/evergreen-ci/gimlet"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// AttachModelRoutes registers the generated endpoints for every model on the
// app. The array sub-resource routes are added only for models with at least
// one array field.
func AttachModelRoutes(app *gimlet.APIApp, models []*model.Model) {
	for _, m := range models {
		app.AddRoute(m.RoutePath).Post().RouteHandler(makeCreateModel(m))
		app.AddRoute(m.RoutePath).Get().RouteHandler(makeListModel(m))
		app.AddRoute(m.RoutePath + "/{document_id}").Get().RouteHandler(makeGetModel(m))
		app.AddRoute(m.RoutePath + "/{document_id}").Patch().RouteHandler(makePatchModel(m))
		app.AddRoute(m.RoutePath + "/{document_id}").Put().RouteHandler(makePutModel(m))
		app.AddRoute(m.RoutePath + "/{document_id}").Delete().RouteHandler(makeDeleteModel(m))

		if len(m.ArrayFields) > 0 {
			fieldPath := m.RoutePath + "/{document_id}/{field}"
			itemPath := fieldPath + "/{item_id}"
			app.AddRoute(fieldPath).Post().RouteHandler(makeArrayField(m, http.MethodPost))
			app.AddRoute(itemPath).Patch().RouteHandler(makeArrayField(m, http.MethodPatch))
			app.AddRoute(itemPath).Delete().RouteHandler(makeArrayField(m, http.MethodDelete))
		}
	}
}

// GetHandler builds an http handler serving every registered model's routes.
func GetHandler(registry *model.Registry) (http.Handler, error) {
	app := gimlet.NewApp()
	app.NoVersions = true
	AttachModelRoutes(app, registry.Models())
	handler, err := app.Handler()
	return handler, errors.Wrap(err, "resolving model routes")
}

// AttachHandler mounts the generated API on an existing mux router, along
// with the realtime websocket endpoint when a hub is provided.
func AttachHandler(root *mux.Router, registry *model.Registry, hub *realtime.Hub) (http.Handler, error) {
	handler, err := GetHandler(registry)
	if err != nil {
		return nil, err
	}
	if hub != nil {
		root.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)
	}
	root.PathPrefix("/").Handler(handler)
	return root, nil
}
