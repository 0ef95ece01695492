package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"go.mongodb.org/mongo-driver/bson"
)

// FilterFunc lets a model narrow or veto a parsed query. It may return the
// query unchanged, return a replacement whose keys are merged over the
// parsed query, or return nil to signal that the request should resolve to
// zero results without an error. The nil convention exists so a router can
// scope queries silently instead of leaking resource existence through a
// 403.
type FilterFunc func(user *auth.User, query bson.M) (bson.M, error)

// ParseQuery decodes URL query parameters into a store query, validating
// every key against the model's allow-list plus the reserved pagination
// parameters. Values that parse as JSON keep their structure, so comparison
// operator objects ({"$gt": 3}) and $and/$or arrays come through; everything
// else stays a string, except "true"/"false" which coerce to booleans.
//
// $and and $or accept one level of nesting only; the keys of each sub-object
// are checked against the same allow-list.
func ParseQuery(values url.Values, queryFields []string) (bson.M, error) {
	query := bson.M{}
	for key, raw := range values {
		if terreno.IsReservedQueryParam(key) {
			continue
		}
		if len(raw) == 0 {
			continue
		}
		value := decodeQueryValue(raw[0])

		if key == "$and" || key == "$or" {
			subs, err := validateLogicalOperator(key, value, queryFields)
			if err != nil {
				return nil, err
			}
			query[key] = subs
			continue
		}

		if !utility.StringSliceContains(queryFields, key) && key != terreno.PeriodQueryParam {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("%s is not allowed as a query param.", key),
			}
		}
		query[key] = value
	}
	return query, nil
}

// validateLogicalOperator checks each sub-object of a one-level $and/$or
// clause against the allow-list. Deeper nesting of logical operators is
// rejected; recursive queries are out of scope.
func validateLogicalOperator(op string, value any, queryFields []string) ([]bson.M, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("%s must be an array of query objects.", op),
		}
	}
	subs := make([]bson.M, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("%s must contain only query objects.", op),
			}
		}
		sub := bson.M{}
		for k, v := range obj {
			if k == "$and" || k == "$or" {
				return nil, gimlet.ErrorResponse{
					StatusCode: http.StatusBadRequest,
					Message:    fmt.Sprintf("%s cannot be nested inside %s.", k, op),
				}
			}
			if !utility.StringSliceContains(queryFields, k) {
				return nil, gimlet.ErrorResponse{
					StatusCode: http.StatusBadRequest,
					Message:    fmt.Sprintf("%s is not allowed as a query param.", k),
				}
			}
			sub[k] = coerceBools(v)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// decodeQueryValue attempts a JSON decode so operator objects and arrays
// survive the flat query string, falling back to the raw string.
func decodeQueryValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		switch decoded.(type) {
		case map[string]any, []any, float64:
			return coerceBools(decoded)
		}
	}
	return raw
}

func coerceBools(v any) any {
	switch value := v.(type) {
	case string:
		if value == "true" {
			return true
		}
		if value == "false" {
			return false
		}
		return value
	case map[string]any:
		out := map[string]any{}
		for k, sub := range value {
			out[k] = coerceBools(sub)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, sub := range value {
			out[i] = coerceBools(sub)
		}
		return out
	default:
		return v
	}
}

// ApplyQueryFilter runs the model's filter function over the parsed query.
// The skip return is true when the filter vetoed the query: the caller must
// resolve with zero results and never touch the store. The period parameter
// is a filter-function convention with no stored field, so it is always
// stripped from the final query.
func (m *Model) ApplyQueryFilter(user *auth.User, query bson.M) (bson.M, bool, error) {
	if m.QueryFilter != nil {
		filtered, err := m.QueryFilter(user, query)
		if err != nil {
			return nil, false, err
		}
		if filtered == nil {
			return nil, true, nil
		}
		merged := bson.M{}
		for k, v := range query {
			merged[k] = v
		}
		for k, v := range filtered {
			merged[k] = v
		}
		query = merged
	}
	delete(query, terreno.PeriodQueryParam)
	return query, false, nil
}
