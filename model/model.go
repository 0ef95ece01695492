// Package model implements the request pipeline behind every generated REST
// router: permission evaluation, role-based field filtering, query parameter
// validation, lifecycle hooks, and the registry the change stream fan-out
// reads to route events.
package model

import (
	"fmt"
	"strings"
	"sync"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Room assignment strategies for realtime events.
const (
	RoomStrategyOwner     = "owner"
	RoomStrategyModel     = "model"
	RoomStrategyBroadcast = "broadcast"
)

// PopulateRule replaces a stored reference id with the referenced document
// when serializing responses. A missing reference leaves the id in place.
type PopulateRule struct {
	Field      string
	Collection string
}

// RealtimeOptions is the registry entry consumed by the change stream
// fan-out. It is created at registration time and never mutated afterwards.
type RealtimeOptions struct {
	// Methods enables fan-out per mutation kind; entries are a subset of
	// create, update, delete.
	Methods []string
	// RoomStrategy is one of the RoomStrategy constants. ResolveRooms,
	// when set, overrides it.
	RoomStrategy string
	ResolveRooms func(doc bson.M, method string) []string
	// Serialize overrides the generic event payload serialization.
	Serialize func(doc bson.M) bson.M
}

// Model is the full configuration of one generated router. Constructed once
// at startup, immutable afterwards.
type Model struct {
	Name       string
	Collection string
	// RoutePath is the path the router is mounted at, e.g. "/food".
	RoutePath string

	Permissions Permissions
	Transformer *Transformer

	// QueryFields is the allow-list of queryable field names. The
	// reserved limit, page, and sort parameters are always accepted.
	QueryFields []string
	QueryFilter FilterFunc
	// DefaultQueryParams are merged under every list query; user-supplied
	// values win.
	DefaultQueryParams bson.M

	// DefaultSort uses the query sort syntax: space separated fields, "-"
	// prefix for descending.
	DefaultSort  string
	DefaultLimit int
	MaxLimit     int

	Populate []PopulateRule
	Hooks    Hooks

	// OwnerField names the field holding the owning user's id, used for
	// owner role resolution and owner rooms.
	OwnerField string
	// SoftDelete marks models with a boolean deleted field: delete sets
	// the flag instead of removing the document.
	SoftDelete bool
	// ArrayFields lists array-valued fields; the sub-resource routes are
	// registered only when at least one is present.
	ArrayFields []string

	Realtime *RealtimeOptions
}

// Validate checks the invariants that must hold before a model is
// registered. Permission rules are required for all five verbs; everything
// else has defaults.
func (m *Model) Validate() error {
	catcher := []string{}
	if m.Name == "" {
		catcher = append(catcher, "name must be set")
	}
	if m.Collection == "" {
		catcher = append(catcher, "collection must be set")
	}
	if m.RoutePath == "" || !strings.HasPrefix(m.RoutePath, "/") {
		catcher = append(catcher, "route path must be set and begin with '/'")
	}
	for _, method := range terreno.Methods {
		if _, ok := m.Permissions.rule(method); !ok {
			catcher = append(catcher, fmt.Sprintf("permissions for '%s' must be set", method))
		}
	}
	if m.Realtime != nil {
		for _, method := range m.Realtime.Methods {
			switch method {
			case terreno.MethodCreate, terreno.MethodUpdate, terreno.MethodDelete:
			default:
				catcher = append(catcher, fmt.Sprintf("invalid realtime method '%s'", method))
			}
		}
	}
	if len(catcher) > 0 {
		return errors.Errorf("invalid model '%s': %s", m.Name, strings.Join(catcher, ", "))
	}
	return nil
}

// EffectiveDefaultLimit is the page size used when the request supplies no
// limit: the model's own default, else the configured API default, else the
// package default.
func (m *Model) EffectiveDefaultLimit() int {
	if m.DefaultLimit > 0 {
		return m.DefaultLimit
	}
	if s := environmentSettings(); s != nil && s.API.DefaultLimit > 0 {
		return s.API.DefaultLimit
	}
	return terreno.DefaultPageLimit
}

// EffectiveMaxLimit caps any requested limit, with the same fallback chain as
// the default limit.
func (m *Model) EffectiveMaxLimit() int {
	if m.MaxLimit > 0 {
		return m.MaxLimit
	}
	if s := environmentSettings(); s != nil && s.API.MaxLimit > 0 {
		return s.API.MaxLimit
	}
	return terreno.MaxPageLimit
}

func environmentSettings() *terreno.Settings {
	env := terreno.GetEnvironment()
	if env == nil {
		return nil
	}
	return env.Settings()
}

// RealtimeEnabled reports whether the fan-out should process the mutation
// kind for this model.
func (m *Model) RealtimeEnabled(method string) bool {
	if m.Realtime == nil {
		return false
	}
	for _, enabled := range m.Realtime.Methods {
		if enabled == method {
			return true
		}
	}
	return false
}

// Registry maps collections to registered models. Registration happens
// during single-threaded startup; reads under traffic take no lock.
type Registry struct {
	mu           sync.Mutex
	registering  bool
	byCollection map[string]*Model
	byName       map[string]*Model
}

func NewRegistry() *Registry {
	return &Registry{
		registering:  true,
		byCollection: map[string]*Model{},
		byName:       map[string]*Model{},
	}
}

// Register validates and adds a model. It fails after Freeze or when the
// collection or name is already taken.
func (r *Registry) Register(m *Model) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "validating model")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registering {
		return errors.Errorf("cannot register model '%s' after registry is frozen", m.Name)
	}
	if _, ok := r.byCollection[m.Collection]; ok {
		return errors.Errorf("collection '%s' is already registered", m.Collection)
	}
	if _, ok := r.byName[m.Name]; ok {
		return errors.Errorf("model '%s' is already registered", m.Name)
	}
	r.byCollection[m.Collection] = m
	r.byName[m.Name] = m
	return nil
}

// Freeze ends the registration phase. Call before serving traffic.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registering = false
}

// ByCollection returns the model registered for the collection, or nil.
func (r *Registry) ByCollection(collection string) *Model {
	return r.byCollection[collection]
}

// Models returns all registered models.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	return out
}
