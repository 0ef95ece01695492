package terreno

const (
	// Methods are the five verbs a model router exposes. Permission
	// rules are keyed by method and must cover all five.
	MethodList   = "list"
	MethodCreate = "create"
	MethodRead   = "read"
	MethodUpdate = "update"
	MethodDelete = "delete"

	// Roles resolved per request (and per document for lists).
	RoleAnonymous     = "anonymous"
	RoleAuthenticated = "auth"
	RoleOwner         = "owner"
	RoleAdmin         = "admin"

	// Reserved query parameters that are always accepted regardless of a
	// model's query field allow-list.
	LimitQueryParam = "limit"
	PageQueryParam  = "page"
	SortQueryParam  = "sort"

	// PeriodQueryParam is a convention for time bucketing handled inside
	// query filter functions. It never reaches the database.
	PeriodQueryParam = "period"

	DefaultPageLimit = 100
	MaxPageLimit     = 500

	// VersionKey is the optimistic concurrency counter stored on every
	// document this framework writes.
	VersionKey = "__v"

	DeletedKey = "deleted"
	UpdatedKey = "updated"
	CreatedKey = "created"
	IDKey      = "_id"
)

// Methods lists every router verb.
var Methods = []string{MethodList, MethodCreate, MethodRead, MethodUpdate, MethodDelete}

// ReservedQueryParams are accepted for any model.
var ReservedQueryParams = []string{LimitQueryParam, PageQueryParam, SortQueryParam}

// IsReservedQueryParam reports whether the key is one of the pagination or
// sorting parameters.
func IsReservedQueryParam(key string) bool {
	for _, p := range ReservedQueryParams {
		if key == p {
			return true
		}
	}
	return false
}
