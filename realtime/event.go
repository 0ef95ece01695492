// Package realtime mirrors committed store mutations to subscribed clients.
// A change stream watcher observes the database's ordered mutation log,
// re-derives which rooms may see each document, and pushes events into a
// room-keyed websocket hub.
package realtime

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Event is the payload pushed to every room a mutation resolves to. Hard
// deletes carry no data, since the full document is no longer fetchable.
type Event struct {
	Collection    string   `json:"collection"`
	Model         string   `json:"model"`
	Method        string   `json:"method"`
	ID            string   `json:"id"`
	Data          bson.M   `json:"data,omitempty"`
	UpdatedFields []string `json:"updatedFields,omitempty"`
	// Timestamp is epoch milliseconds. Clients order patches for the same
	// document by the document's own updated time, not by arrival order.
	Timestamp int64 `json:"timestamp"`
}

// BroadcastRoom is the single room shared by all authenticated clients.
const BroadcastRoom = "broadcast"

// OwnerRoom is the room scoped to one user's documents.
func OwnerRoom(userID string) string { return "user:" + userID }

// ModelRoom is the model-wide room.
func ModelRoom(name string) string { return "model:" + name }
