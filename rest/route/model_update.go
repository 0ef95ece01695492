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
// PATCH /<model>/{document_id}

type patchModelHandler struct {
	m  *model.Model
	r  *http.Request
	id string
}

func makePatchModel(m *model.Model) gimlet.RouteHandler {
	return &patchModelHandler{m: m}
}

func (h *patchModelHandler) Factory() gimlet.RouteHandler {
	return &patchModelHandler{m: h.m}
}

func (h *patchModelHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	h.id = gimlet.GetVars(r)["document_id"]
	return nil
}

func (h *patchModelHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)
	doc, err := loadForObjectMethod(ctx, h.m, terreno.MethodUpdate, h.id, user)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	body := bson.M{}
	if err := decodeBody(h.r, &body); err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	role := model.ResolveRole(user, doc.Data(), h.m.OwnerField)
	cleaned, err := h.m.Transformer.TransformWrite(body, role)
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

////////////////////////////////////////////////////////////////////////
//
// PUT /<model>/{document_id}
//
// PATCH is the only update verb; PUT fails unconditionally.

type putModelHandler struct {
	m *model.Model
}

func makePutModel(m *model.Model) gimlet.RouteHandler {
	return &putModelHandler{m: m}
}

func (h *putModelHandler) Factory() gimlet.RouteHandler {
	return &putModelHandler{m: h.m}
}

func (h *putModelHandler) Parse(ctx context.Context, r *http.Request) error {
	return nil
}

func (h *putModelHandler) Run(ctx context.Context) gimlet.Responder {
	return restmodel.MakeProblemResponder(gimlet.ErrorResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "PUT is not supported.",
	})
}
