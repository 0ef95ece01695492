package model

import (
	"fmt"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/evergreen-ci/gimlet"
	"go.mongodb.org/mongo-driver/bson"
)

// Predicate is a single permission check. For list and create there is no
// target document and doc is nil; for read, update, and delete the predicate
// runs twice, once method-level with a nil doc and once against the loaded
// document.
type Predicate func(user *auth.User, doc bson.M) bool

// Rule is a list of predicates that must all pass.
type Rule []Predicate

func (r Rule) check(user *auth.User, doc bson.M) bool {
	for _, p := range r {
		if !p(user, doc) {
			return false
		}
	}
	return true
}

// Permissions holds one rule per router verb. All five must be set; Validate
// on the model enforces that at registration time.
type Permissions struct {
	List   Rule
	Create Rule
	Read   Rule
	Update Rule
	Delete Rule

	// AllowAnonymous gates unauthenticated access to the whole router,
	// independent of the predicates. When it is set the predicates still
	// run with a nil user.
	AllowAnonymous bool
}

func (p *Permissions) rule(method string) (Rule, bool) {
	switch method {
	case terreno.MethodList:
		return p.List, p.List != nil
	case terreno.MethodCreate:
		return p.Create, p.Create != nil
	case terreno.MethodRead:
		return p.Read, p.Read != nil
	case terreno.MethodUpdate:
		return p.Update, p.Update != nil
	case terreno.MethodDelete:
		return p.Delete, p.Delete != nil
	}
	return nil, false
}

// CanPerform evaluates the rule for the method. Pass a nil doc for the
// method-level check and the loaded document for the object-level check.
func (p *Permissions) CanPerform(method string, user *auth.User, doc bson.M) bool {
	if user == nil && !p.AllowAnonymous {
		return false
	}
	rule, ok := p.rule(method)
	if !ok {
		return false
	}
	return rule.check(user, doc)
}

// PermissionError builds the method-not-allowed error surfaced when a
// method-level check fails on a mutating verb, naming the acting identity and
// the target.
func PermissionError(method string, user *auth.User, id string) gimlet.ErrorResponse {
	who := "anonymous user"
	if user != nil {
		who = fmt.Sprintf("user '%s'", user.Id)
	}
	msg := fmt.Sprintf("%s is not permitted to %s", who, method)
	if id != "" {
		msg = fmt.Sprintf("%s '%s'", msg, id)
	}
	return gimlet.ErrorResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    msg,
	}
}

// ObjectPermissionError is the forbidden error for an object-level failure.
func ObjectPermissionError(method string, user *auth.User, id string) gimlet.ErrorResponse {
	who := "anonymous user"
	if user != nil {
		who = fmt.Sprintf("user '%s'", user.Id)
	}
	return gimlet.ErrorResponse{
		StatusCode: http.StatusForbidden,
		Message:    fmt.Sprintf("%s may not %s document '%s'", who, method, id),
	}
}

// Common predicates.

// IsAny passes for every identity, including anonymous.
func IsAny(user *auth.User, doc bson.M) bool { return true }

// IsAuthenticated passes for any non-anonymous identity.
func IsAuthenticated(user *auth.User, doc bson.M) bool { return user != nil }

// IsAdmin passes for identities with the admin flag.
func IsAdmin(user *auth.User, doc bson.M) bool { return user != nil && user.Admin }

// IsOwnerOf returns a predicate that passes for admins and for the identity
// matching the document's owner field. With no document loaded it passes for
// any authenticated identity, deferring to the object-level check.
func IsOwnerOf(ownerField string) Predicate {
	return func(user *auth.User, doc bson.M) bool {
		if user == nil {
			return false
		}
		if user.Admin {
			return true
		}
		if doc == nil {
			return true
		}
		return ownerMatches(doc, ownerField, user.Id)
	}
}

func ownerMatches(doc bson.M, ownerField, userID string) bool {
	if ownerField == "" || userID == "" {
		return false
	}
	owner, ok := doc[ownerField]
	if !ok {
		return false
	}
	return IDString(owner) == userID
}
