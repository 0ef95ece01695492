package route

import (
	"context"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////
//
// DELETE /<model>/{document_id}

type deleteModelHandler struct {
	m  *model.Model
	r  *http.Request
	id string
}

func makeDeleteModel(m *model.Model) gimlet.RouteHandler {
	return &deleteModelHandler{m: m}
}

func (h *deleteModelHandler) Factory() gimlet.RouteHandler {
	return &deleteModelHandler{m: h.m}
}

func (h *deleteModelHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	h.id = gimlet.GetVars(r)["document_id"]
	return nil
}

func (h *deleteModelHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)
	doc, err := loadForObjectMethod(ctx, h.m, terreno.MethodDelete, h.id, user)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	working, err := h.m.RunPreDelete(ctx, doc.Data(), h.r)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	doc.SetFields(working)

	if err := doc.Delete(ctx); err != nil {
		return restmodel.MakeProblemResponder(errors.Wrap(err, "deleting document"))
	}

	if err := h.m.RunPostDelete(ctx, h.r, doc.Data()); err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	resp := gimlet.NewJSONResponse(struct{}{})
	if err := resp.SetStatus(http.StatusNoContent); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrap(err, "setting status"))
	}
	return resp
}
