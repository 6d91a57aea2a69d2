package api

import (
	"net/http"
	"strings"

	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/pkg/openapi"
	"github.com/JaimeStill/vetrecords/pkg/routes"
)

var summaries = map[string]string{
	"GET /documents":                                 "List documents",
	"POST /documents":                                "Upload a PDF document",
	"POST /documents/search":                         "Search documents",
	"GET /documents/{id}":                            "Find a document",
	"GET /documents/{id}/file":                       "Download the original file",
	"POST /documents/{id}/runs":                      "Queue a reprocessing run",
	"POST /documents/{id}/review":                    "Mark a document reviewed",
	"POST /documents/{id}/reopen":                    "Reopen a reviewed document",
	"GET /runs":                                      "List processing runs",
	"POST /runs/search":                              "Search processing runs",
	"GET /runs/{id}":                                 "Find a processing run",
	"GET /runs/{id}/steps":                           "List the steps of a run",
	"GET /runs/{id}/raw-text":                        "Raw extracted text of a run",
	"GET /runs/document/{id}/latest":                 "Latest run of a document",
	"GET /interpretations/{runId}":                   "Latest interpretation of a run",
	"GET /interpretations/{runId}/versions":          "List interpretation versions",
	"GET /interpretations/{runId}/versions/{version}": "Find an interpretation version",
	"POST /interpretations/{runId}/edits":            "Apply field edits",
	"GET /interpretations/{runId}/changes":           "Field change log",
	"GET /interpretations/{runId}/export":            "Export the latest interpretation",
	"GET /calibration":                               "List calibration aggregates",
	"POST /calibration/search":                       "Search calibration aggregates",
	"GET /calibration/policy":                        "Active calibration policy",
	"GET /calibration/snapshots/{documentId}":        "Review snapshots of a document",
}

// listEndpoints accept the pagination query parameters.
var listEndpoints = map[string]bool{
	"/documents":   true,
	"/runs":        true,
	"/calibration": true,
}

// buildSpec derives the OpenAPI document from the registered route groups
// and returns a handler that serves it.
func buildSpec(cfg *config.Config, groups []routes.Group) (http.HandlerFunc, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	for _, ep := range routes.Flatten(groups...) {
		if err := spec.AddOperation(ep.Method, ep.Path, operation(ep)); err != nil {
			return nil, err
		}
	}

	return spec.Handler()
}

func operation(ep routes.Endpoint) *openapi.Operation {
	key := ep.Method + " " + ep.Path
	summary, ok := summaries[key]
	if !ok {
		summary = key
	}

	op := &openapi.Operation{
		Summary: summary,
		Tags:    []string{strings.TrimPrefix(ep.Group, "/")},
		Responses: map[int]*openapi.Response{
			http.StatusOK:         {Description: "Success"},
			http.StatusBadRequest: openapi.ResponseRef("BadRequest"),
		},
	}

	for _, name := range pathParams(ep.Path) {
		typ := ""
		if name == "version" {
			typ = "integer"
		}
		op.Parameters = append(op.Parameters, openapi.PathParam(name, typ))
	}

	if len(op.Parameters) > 0 {
		op.Responses[http.StatusNotFound] = openapi.ResponseRef("NotFound")
	}

	switch {
	case ep.Method == http.MethodGet && listEndpoints[ep.Path]:
		op.Parameters = append(op.Parameters,
			openapi.QueryParam("page", "integer", "1-based page number"),
			openapi.QueryParam("page_size", "integer", "Items per page"),
			openapi.QueryParam("search", "string", "Case-insensitive text search"),
			openapi.QueryParam("sort", "string", "Comma-separated sort fields"),
		)
	case strings.HasSuffix(ep.Path, "/search"):
		op.RequestBody = openapi.RequestBodyJSON("PageRequest", false)
	case key == "POST /documents":
		op.RequestBody = openapi.RequestBodyUpload("file")
		op.Responses[http.StatusCreated] = &openapi.Response{Description: "Document stored and first run queued"}
		op.Responses[http.StatusRequestEntityTooLarge] = openapi.ResponseRef("PayloadTooLarge")
		op.Responses[http.StatusUnsupportedMediaType] = openapi.ResponseRef("UnsupportedMediaType")
		delete(op.Responses, http.StatusOK)
	}

	if ep.Method == http.MethodPost && len(pathParams(ep.Path)) > 0 {
		op.Responses[http.StatusConflict] = openapi.ResponseRef("Conflict")
	}
	return op
}

func pathParams(path string) []string {
	var names []string
	for rest := path; ; {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return names
		}
		names = append(names, rest[start+1:start+end])
		rest = rest[start+end+1:]
	}
}
