package realtime

import (
	"context"
	"time"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/db"
	"github.com/FlourishHealth/terreno-sub002/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// watchedOperations are the change stream operation types the fan-out
// consumes. Everything else is filtered server-side.
var watchedOperations = []string{"insert", "update", "replace", "delete"}

// Watcher consumes the store's mutation log and fans events out to the hub.
type Watcher struct {
	env      terreno.Environment
	registry *model.Registry
	hub      *Hub
}

func NewWatcher(env terreno.Environment, registry *model.Registry, hub *Hub) *Watcher {
	return &Watcher{env: env, registry: registry, hub: hub}
}

// changeEvent is the subset of the change stream document the fan-out needs.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
	UpdateDescription struct {
		UpdatedFields bson.M   `bson:"updatedFields"`
		RemovedFields []string `bson:"removedFields"`
	} `bson:"updateDescription"`
	NS struct {
		DB   string `bson:"db"`
		Coll string `bson:"coll"`
	} `bson:"ns"`
	ClusterTime primitive.Timestamp `bson:"clusterTime"`
}

// Start opens the change stream and consumes it on a background goroutine
// until the context is cancelled. Restarting a dead stream is an operational
// concern outside this component.
func (w *Watcher) Start(ctx context.Context) error {
	settings := w.env.Settings()
	if settings.Realtime.Disabled {
		grip.Info(message.Fields{
			"message":   "realtime fan-out is disabled, not opening a change stream",
			"component": "realtime",
		})
		return nil
	}

	ops := make([]string, 0, len(watchedOperations))
	for _, op := range watchedOperations {
		ignored := false
		for _, skip := range settings.Realtime.IgnoredOperations {
			if op == skip {
				ignored = true
				break
			}
		}
		if !ignored {
			ops = append(ops, op)
		}
	}

	match := bson.M{"operationType": bson.M{"$in": ops}}
	if len(settings.Realtime.IgnoredCollections) > 0 {
		match["ns.coll"] = bson.M{"$nin": settings.Realtime.IgnoredCollections}
	}

	stream, err := db.Watch(ctx, mongo.Pipeline{{{Key: "$match", Value: match}}})
	if err != nil {
		return errors.Wrap(err, "starting change stream watcher")
	}

	go w.consume(ctx, stream)
	return nil
}

func (w *Watcher) consume(ctx context.Context, stream *mongo.ChangeStream) {
	defer recovery.LogStackTraceAndContinue("change stream consumer")
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grip.Warning(message.WrapError(stream.Close(closeCtx), "closing change stream"))
	}()

	for stream.Next(ctx) {
		event := changeEvent{}
		if err := stream.Decode(&event); err != nil {
			w.reportError(err, "decoding change event", "")
			continue
		}
		// one bad event must not deafen the pipeline; log, report, and
		// keep consuming
		if err := w.processEvent(event); err != nil {
			w.reportError(err, "processing change event", event.NS.Coll)
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		w.reportError(err, "change stream terminated", "")
	}
}

func (w *Watcher) reportError(err error, msg, collection string) {
	composer := message.WrapError(err, message.Fields{
		"message":    msg,
		"component":  "realtime",
		"collection": collection,
	})
	grip.Error(composer)
	if sender := w.env.ErrorSender(); sender != nil {
		_ = composer.SetPriority(level.Error)
		sender.Send(composer)
	}
}

// classifyMethod maps a native operation type onto the router's mutation
// kinds. An update that flips the deleted flag is reclassified as a delete,
// matching the soft-delete convention.
func classifyMethod(event changeEvent) string {
	switch event.OperationType {
	case "insert":
		return terreno.MethodCreate
	case "delete":
		return terreno.MethodDelete
	case "update":
		if deleted, ok := event.UpdateDescription.UpdatedFields[terreno.DeletedKey]; ok {
			if flag, ok := deleted.(bool); ok && flag {
				return terreno.MethodDelete
			}
		}
		return terreno.MethodUpdate
	case "replace":
		if deleted, ok := event.FullDocument[terreno.DeletedKey]; ok {
			if flag, ok := deleted.(bool); ok && flag {
				return terreno.MethodDelete
			}
		}
		return terreno.MethodUpdate
	default:
		return ""
	}
}

func (w *Watcher) processEvent(event changeEvent) error {
	// collections without a registered model are not realtime-enabled
	m := w.registry.ByCollection(event.NS.Coll)
	if m == nil {
		return nil
	}
	method := classifyMethod(event)
	if method == "" || !m.RealtimeEnabled(method) {
		return nil
	}

	out := Event{
		Collection: event.NS.Coll,
		Model:      m.Name,
		Method:     method,
		ID:         model.IDString(event.DocumentKey.ID),
		Timestamp:  eventTimestamp(event),
	}

	if event.OperationType == "delete" {
		// the owner cannot be recomputed once the document is gone, so
		// hard deletes go to the model-wide room without a payload
		w.hub.Publish(out, ModelRoom(m.Name))
		return nil
	}

	if event.FullDocument == nil {
		return errors.Errorf("change event for '%s' carries no document", out.ID)
	}

	out.Data = serializeEvent(m, event.FullDocument)
	out.UpdatedFields = updatedFieldNames(event)

	rooms := resolveRooms(m, event.FullDocument, method)
	w.hub.Publish(out, rooms...)
	return nil
}

func eventTimestamp(event changeEvent) int64 {
	if event.ClusterTime.T > 0 {
		return int64(event.ClusterTime.T) * 1000
	}
	return time.Now().UnixMilli()
}

func updatedFieldNames(event changeEvent) []string {
	if event.OperationType != "update" {
		return nil
	}
	names := make([]string, 0, len(event.UpdateDescription.UpdatedFields)+len(event.UpdateDescription.RemovedFields))
	for name := range event.UpdateDescription.UpdatedFields {
		names = append(names, name)
	}
	names = append(names, event.UpdateDescription.RemovedFields...)
	return names
}

func serializeEvent(m *model.Model, doc bson.M) bson.M {
	if m.Realtime != nil && m.Realtime.Serialize != nil {
		return m.Realtime.Serialize(doc)
	}
	out := bson.M{}
	for k, v := range doc {
		if k == terreno.VersionKey {
			continue
		}
		out[k] = v
	}
	return out
}

// resolveRooms applies the model's room strategy: owner rooms fall back to
// the model-wide room when the document has no owner.
func resolveRooms(m *model.Model, doc bson.M, method string) []string {
	if m.Realtime != nil && m.Realtime.ResolveRooms != nil {
		return m.Realtime.ResolveRooms(doc, method)
	}
	strategy := model.RoomStrategyModel
	if m.Realtime != nil && m.Realtime.RoomStrategy != "" {
		strategy = m.Realtime.RoomStrategy
	}
	switch strategy {
	case model.RoomStrategyOwner:
		if owner := model.IDString(doc[m.OwnerField]); owner != "" {
			return []string{OwnerRoom(owner)}
		}
		return []string{ModelRoom(m.Name)}
	case model.RoomStrategyBroadcast:
		return []string{BroadcastRoom}
	default:
		return []string{ModelRoom(m.Name)}
	}
}
