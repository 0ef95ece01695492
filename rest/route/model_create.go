package route

import (
	"context"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
	"go.mongodb.org/mongo-driver/bson"
)

////////////////////////////////////////////////////////////////////////
//
// POST /<model>

type createModelHandler struct {
	m *model.Model
	r *http.Request
}

func makeCreateModel(m *model.Model) gimlet.RouteHandler {
	return &createModelHandler{m: m}
}

func (h *createModelHandler) Factory() gimlet.RouteHandler {
	return &createModelHandler{m: h.m}
}

func (h *createModelHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	return nil
}

func (h *createModelHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)
	if !h.m.Permissions.CanPerform(terreno.MethodCreate, user, nil) {
		return restmodel.MakeProblemResponder(model.PermissionError(terreno.MethodCreate, user, ""))
	}

	body := bson.M{}
	if err := decodeBody(h.r, &body); err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	// ownership in the body determines the role for write filtering, so a
	// user creating a document they will own writes with owner fields
	role := model.ResolveRole(user, body, h.m.OwnerField)
	cleaned, err := h.m.Transformer.TransformWrite(body, role)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	cleaned, err = h.m.RunPreCreate(ctx, cleaned, h.r)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	doc, err := h.m.InsertDocument(ctx, cleaned)
	if err != nil {
		return restmodel.MakeProblemResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		})
	}

	// postCreate runs after the insert committed; its failure surfaces to
	// the caller but the document stays persisted
	if err := h.m.RunPostCreate(ctx, doc, h.r); err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	return respondDocument(ctx, h.m, user, doc, http.StatusCreated)
}
