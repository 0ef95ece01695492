package model

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDString normalizes the representations an id can take in a decoded
// document so owner and item comparisons work across string and ObjectID
// storage.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

// parseID turns a path parameter into the value used for _id queries. A
// strict 24-character hex check decides whether it is an ObjectID; anything
// else is matched as a plain string. Length-based heuristics are not enough
// here since ordinary 12- or 24-byte strings would false-positive.
func parseID(raw string) any {
	if oid, err := primitive.ObjectIDFromHex(raw); err == nil {
		return oid
	}
	return raw
}

// IDValuesEqual reports whether a stored id equals a path parameter, using
// the same strict ObjectID parse on the parameter side.
func IDValuesEqual(stored any, param string) bool {
	if stored == nil {
		return false
	}
	if oid, ok := stored.(primitive.ObjectID); ok {
		parsed, err := primitive.ObjectIDFromHex(param)
		return err == nil && parsed == oid
	}
	return IDString(stored) == param
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
