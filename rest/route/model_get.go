package route

import (
	"context"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
)

////////////////////////////////////////////////////////////////////////
//
// GET /<model>/{document_id}

type getModelHandler struct {
	m  *model.Model
	r  *http.Request
	id string
}

func makeGetModel(m *model.Model) gimlet.RouteHandler {
	return &getModelHandler{m: m}
}

func (h *getModelHandler) Factory() gimlet.RouteHandler {
	return &getModelHandler{m: h.m}
}

func (h *getModelHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	h.id = gimlet.GetVars(r)["document_id"]
	return nil
}

func (h *getModelHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)
	doc, err := loadForObjectMethod(ctx, h.m, terreno.MethodRead, h.id, user)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	work, err := h.m.PopulateDocument(ctx, doc.DeepCopy())
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	work, err = h.m.RunPostGet(ctx, work, h.r)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	return gimlet.NewJSONResponse(restmodel.DataResponse{
		Data: h.m.SerializeDocument(user, work),
	})
}
