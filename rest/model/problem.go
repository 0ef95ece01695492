// Package model holds the wire types of the generated API: the list
// response envelope and the JSON:API style problem object every error is
// rendered as.
package model

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
)

// APIProblem is the error body shape. Title and status are always present;
// the rest is optional detail.
type APIProblem struct {
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Code   string            `json:"code,omitempty"`
	Detail string            `json:"detail,omitempty"`
	ID     string            `json:"id,omitempty"`
	Links  map[string]string `json:"links,omitempty"`
	Source *ProblemSource    `json:"source,omitempty"`
	Meta   map[string]any    `json:"meta,omitempty"`
}

type ProblemSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

func (p APIProblem) Error() string { return p.Title }

// ListResponse is the envelope of every list endpoint.
type ListResponse struct {
	Data  []any `json:"data"`
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
	More  bool  `json:"more"`
	Page  int   `json:"page"`
}

// DataResponse wraps single-document responses.
type DataResponse struct {
	Data any `json:"data"`
}

// ProblemFromError maps any error onto a problem object. Typed API errors
// keep their status and message; anything unclassified becomes a generic 500
// so internal state never leaks.
func ProblemFromError(err error) APIProblem {
	cause := errors.Cause(err)
	switch typed := cause.(type) {
	case APIProblem:
		return typed
	case gimlet.ErrorResponse:
		return APIProblem{Title: typed.Message, Status: typed.StatusCode}
	}
	return APIProblem{
		Title:  "internal server error",
		Status: http.StatusInternalServerError,
	}
}

// MakeProblemResponder renders an error as its problem body with the
// matching HTTP status.
func MakeProblemResponder(err error) gimlet.Responder {
	problem := ProblemFromError(err)
	resp := gimlet.NewJSONResponse(problem)
	_ = resp.SetStatus(problem.Status)
	return resp
}
