package route

import (
	"context"
	"net/http"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/FlourishHealth/terreno-sub002/db"
	"github.com/FlourishHealth/terreno-sub002/model"
	restmodel "github.com/FlourishHealth/terreno-sub002/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

////////////////////////////////////////////////////////////////////////
//
// GET /<model>

type listModelHandler struct {
	m *model.Model
	r *http.Request
}

func makeListModel(m *model.Model) gimlet.RouteHandler {
	return &listModelHandler{m: m}
}

func (h *listModelHandler) Factory() gimlet.RouteHandler {
	return &listModelHandler{m: h.m}
}

func (h *listModelHandler) Parse(ctx context.Context, r *http.Request) error {
	h.r = r
	return nil
}

func (h *listModelHandler) Run(ctx context.Context) gimlet.Responder {
	user := auth.GetUser(ctx)
	if !h.m.Permissions.CanPerform(terreno.MethodList, user, nil) {
		return restmodel.MakeProblemResponder(model.PermissionError(terreno.MethodList, user, ""))
	}

	vals := h.r.URL.Query()
	page, err := parsePagination(vals, h.m)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	userQuery, err := model.ParseQuery(vals, h.m.QueryFields)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	// default constraints sit under the user query; user keys win
	query := bson.M{}
	for k, v := range h.m.DefaultQueryParams {
		query[k] = v
	}
	for k, v := range userQuery {
		query[k] = v
	}
	if h.m.SoftDelete {
		if _, ok := query[terreno.DeletedKey]; !ok {
			query[terreno.DeletedKey] = bson.M{"$ne": true}
		}
	}

	query, skipQuery, err := h.m.ApplyQueryFilter(user, query)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}
	if skipQuery {
		// the filter vetoed the query: resolve empty without touching
		// the store and without revealing whether anything matched
		return gimlet.NewJSONResponse(restmodel.ListResponse{
			Data:  []any{},
			Limit: page.limit,
			Page:  page.page,
		})
	}

	sort := parseSort(vals.Get(terreno.SortQueryParam))
	if len(sort) == 0 {
		sort = parseSort(h.m.DefaultSort)
	}

	skip := 0
	if page.pageSet {
		skip = (page.page - 1) * page.limit
	}

	// fetch one past the window so "more" costs no second query
	window, err := db.FindPage(ctx, h.m.Collection, query, sort, skip, page.limit+1)
	if err != nil {
		return restmodel.MakeProblemResponder(errors.Wrap(err, "querying documents"))
	}
	total, err := db.Count(ctx, h.m.Collection, query)
	if err != nil {
		return restmodel.MakeProblemResponder(errors.Wrap(err, "counting documents"))
	}

	more := len(window) > page.limit
	if more {
		window = window[:page.limit]
		if !page.pageSet {
			grip.Warning(message.Fields{
				"message":    "list result truncated without explicit pagination",
				"model":      h.m.Name,
				"collection": h.m.Collection,
				"limit":      page.limit,
				"total":      total,
			})
		}
	}

	for i := range window {
		if window[i], err = h.m.PopulateDocument(ctx, window[i]); err != nil {
			return restmodel.MakeProblemResponder(err)
		}
	}
	window, err = h.m.RunPostList(ctx, window, h.r)
	if err != nil {
		return restmodel.MakeProblemResponder(err)
	}

	// role resolution runs per document: ownership varies across the page
	data := make([]any, 0, len(window))
	for _, doc := range window {
		data = append(data, h.m.SerializeDocument(user, doc))
	}

	return gimlet.NewJSONResponse(restmodel.ListResponse{
		Data:  data,
		Total: total,
		Limit: page.limit,
		More:  more,
		Page:  page.page,
	})
}
