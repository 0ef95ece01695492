// Package route implements the generated REST surface of a registered
// model: five document endpoints, the unsupported PUT, and the array
// sub-resource endpoints. Handlers follow the gimlet Factory/Parse/Run
// pattern; all request validation happens in Run so every failure renders
// as the API's problem object.
package route

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/db"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// parseSort turns the space-separated sort syntax into a sort document. A
// leading "-" sorts the field descending.
func parseSort(sort string) bson.D {
	out := bson.D{}
	for _, field := range strings.Fields(sort) {
		order := 1
		if strings.HasPrefix(field, "-") {
			order = -1
			field = field[1:]
		}
		if field == "" {
			continue
		}
		out = append(out, bson.E{Key: field, Value: order})
	}
	return out
}

type pagination struct {
	limit   int
	page    int
	pageSet bool
}

// parsePagination validates the reserved limit and page parameters. The
// limit is capped at the model's max; the page must be a positive integer.
func parsePagination(vals url.Values, m *model.Model) (pagination, error) {
	p := pagination{limit: m.EffectiveDefaultLimit(), page: 1}

	if raw := vals.Get(terreno.LimitQueryParam); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return p, gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("Invalid limit: %s", raw),
			}
		}
		if max := m.EffectiveMaxLimit(); limit > max {
			limit = max
		}
		p.limit = limit
	}

	if raw := vals.Get(terreno.PageQueryParam); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return p, gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("Invalid page: %s", raw),
			}
		}
		p.page = page
		p.pageSet = true
	}

	return p, nil
}

func notFoundErr(m *model.Model, id string) gimlet.ErrorResponse {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("%s '%s' not found", m.Name, id),
	}
}

// loadForObjectMethod runs the two-step permission sequence of the
// single-document verbs: the method-level check, then the load, then the
// object-level check against the loaded document.
func loadForObjectMethod(ctx context.Context, m *model.Model, method, id string, user *auth.User) (*model.Document, error) {
	if !m.Permissions.CanPerform(method, user, nil) {
		return nil, model.PermissionError(method, user, id)
	}
	doc, err := m.FindDocumentByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "loading document")
	}
	if doc == nil {
		return nil, notFoundErr(m, id)
	}
	if !m.Permissions.CanPerform(method, user, doc.Data()) {
		return nil, model.ObjectPermissionError(method, user, id)
	}
	return doc, nil
}

// respondDocument populates and serializes a document and wraps it in the
// data envelope with the given status.
func respondDocument(ctx context.Context, m *model.Model, user *auth.User, doc bson.M, status int) gimlet.Responder {
	populated, err := m.PopulateDocument(ctx, doc)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	resp := gimlet.NewJSONResponse(restmodel.DataResponse{Data: m.SerializeDocument(user, populated)})
	if err := resp.SetStatus(status); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, "setting status %d", status))
	}
	return resp
}

// saveError maps document save failures onto API errors: a lost optimistic
// concurrency race and other write rejections are retryable 400s, a vanished
// document is a 404.
func saveError(m *model.Model, id string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsVersionConflict(err) {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("%s '%s' was modified concurrently, retry the request", m.Name, id),
		}
	}
	if db.IsNotFound(err) {
		return notFoundErr(m, id)
	}
	return errors.Wrap(err, "saving document")
}

// decodeBody reads the JSON request body.
func decodeBody(r *http.Request, out *bson.M) error {
	if err := gimlet.GetJSON(r.Body, out); err != nil {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("malformed JSON in request body: %s", err.Error()),
		}
	}
	return nil
}
