package route

import (
	"context"
	"fmt"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

////////////////////////////////////////////////////////////////////////
//
// POST   /<model>/{document_id}/{field}
// PATCH  /<model>/{document_id}/{field}/{item_id}
// DELETE /<model>/{document_id}/{field}/{item_id}
//
// Array item mutation is framed as a single-field update of the parent
// document, so the whole new array runs through the same transform and
// preUpdate/postUpdate chain as an ordinary PATCH. That keeps permission and
// field filtering identical between document-level and item-level writes.

type arrayFieldHandler struct {
	m      *model.Model
	method string

	r      *http.Request
	id     string
	field  string
	itemID string
}

func makeArrayField(m *model.Model, method string) gimlet.RouteHandler {
	return &arrayFieldHandler{m: m, method: method}
}

func (h *arrayFieldHandler) Factory() gimlet.RouteHandler {
	return &arrayFieldHandler{m: h.m, method: h.method}
}

func (h *arrayFieldHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	vars := gimlet.GetVars(r)
	h.id = vars["document_id"]
	h.field = vars["field"]
	h.itemID = vars["item_id"]
	return nil
}

func (h *arrayFieldHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)

	if !utility.StringSliceContains(h.m.ArrayFields, h.field) {
		return restmodel.MakeProblemResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("'%s' is not an array field of %s", h.field, h.m.Name),
		})
	}

	doc, err := loadForObjectMethod(ctx, h.m, terreno.MethodUpdate, h.id, user)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	var item any
	if h.method == http.MethodPost || h.method == http.MethodPatch {
		body := bson.M{}
		if err := decodeBody(h.r, &body); err != nil {
			return restmodel.MakeProblemResponder(err)
		}
		var ok bool
		if item, ok = body[h.field]; !ok {
			return restmodel.MakeProblemResponder(gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("body must include field '%s'", h.field),
			})
		}
	}

	current := asArray(doc.Get(h.field))
	var updated []any
	switch h.method {
	case http.MethodPost:
		updated = append(current, item)
	case http.MethodPatch:
		updated, err = patchArrayItem(current, h.itemID, item)
	case http.MethodDelete:
		updated, err = removeArrayItem(current, h.itemID)
	}
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	cleaned := bson.M{h.field: updated}
	role := model.ResolveRole(user, doc.Data(), h.m.OwnerField)
	cleaned, err = h.m.Transformer.TransformWrite(cleaned, role)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	cleaned, err = h.m.RunPreUpdate(ctx, cleaned, h.r, h.id)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	previous := doc.DeepCopy()
	doc.SetFields(cleaned)
	if err := doc.Save(ctx); err != nil {
		return restmodel.MakeProblemResponder(saveError(h.m, h.id, err))
	}

	work, err := h.m.PopulateDocument(ctx, doc.DeepCopy())
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	if err := h.m.RunPostUpdate(ctx, work, cleaned, h.r, previous); err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	return gimlet.NewJSONResponse(restmodel.DataResponse{
		Data: h.m.SerializeDocument(user, work),
	})
}

func asArray(v any) []any {
	switch arr := v.(type) {
	case nil:
		return []any{}
	case []any:
		return arr
	case primitive.A:
		return []any(arr)
	case []bson.M:
		out := make([]any, len(arr))
		for i := range arr {
			out[i] = arr[i]
		}
		return out
	default:
		return []any{}
	}
}

func itemNotFoundErr(itemID string) gimlet.ErrorResponse {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("item '%s' not found", itemID),
	}
}

// subdocumentID extracts the id of an object array element, checking both
// the _id and id spellings.
func subdocumentID(elem bson.M) (any, bool) {
	if id, ok := elem[terreno.IDKey]; ok {
		return id, true
	}
	if id, ok := elem["id"]; ok {
		return id, true
	}
	return nil, false
}

func asDocument(v any) (bson.M, bool) {
	switch elem := v.(type) {
	case bson.M:
		return elem, true
	case map[string]any:
		return bson.M(elem), true
	default:
		return nil, false
	}
}

// findArrayItem locates the element addressed by the item id path
// parameter. Object elements match on their _id/id using the strict
// ObjectID parse; primitive elements match on their string form.
func findArrayItem(arr []any, itemID string) int {
	for i, v := range arr {
		if elem, ok := asDocument(v); ok {
			id, ok := subdocumentID(elem)
			if ok && model.IDValuesEqual(id, itemID) {
				return i
			}
			continue
		}
		if model.IDValuesEqual(v, itemID) {
			return i
		}
	}
	return -1
}

// patchArrayItem merges fields into the matched object element, preserving
// its id; a primitive element is replaced wholesale.
func patchArrayItem(arr []any, itemID string, item any) ([]any, error) {
	idx := findArrayItem(arr, itemID)
	if idx < 0 {
		return nil, itemNotFoundErr(itemID)
	}

	out := make([]any, len(arr))
	copy(out, arr)

	existing, isObject := asDocument(arr[idx])
	patch, patchIsObject := asDocument(item)
	if !isObject || !patchIsObject {
		out[idx] = item
		return out, nil
	}

	merged := bson.M{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		if k == terreno.IDKey || k == "id" {
			continue
		}
		merged[k] = v
	}
	out[idx] = merged
	return out, nil
}

func removeArrayItem(arr []any, itemID string) ([]any, error) {
	idx := findArrayItem(arr, itemID)
	if idx < 0 {
		return nil, itemNotFoundErr(itemID)
	}
	out := make([]any, 0, len(arr)-1)
	out = append(out, arr[:idx]...)
	out = append(out, arr[idx+1:]...)
	return out, nil
}
