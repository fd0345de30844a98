package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/duet/internal/errlog"
)

type HealthOutput struct {
	Body struct {
		Status    string            `json:"status"`
		Providers map[string]string `json:"providers"`
	}
}

func RegisterHealthRoutes(api huma.API, pipeline Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report pipeline readiness",
		Tags:        []string{"Health"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Status = "ok"
		out.Body.Providers = pipeline.Health()
		return out, nil
	})
}

type ListErrorsInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Max records"`
}

type ListErrorsOutput struct {
	Body struct {
		Errors []errlog.Record `json:"errors"`
		Stats  errlog.Stats    `json:"stats"`
	}
}

func RegisterErrorRoutes(api huma.API, errs ErrorLog) {
	huma.Register(api, huma.Operation{
		OperationID: "list-errors",
		Method:      http.MethodGet,
		Path:        "/errors",
		Summary:     "List recent pipeline errors",
		Tags:        []string{"Health"},
	}, func(_ context.Context, input *ListErrorsInput) (*ListErrorsOutput, error) {
		out := &ListErrorsOutput{}
		out.Body.Errors = errs.Recent(input.Limit)
		out.Body.Stats = errs.Stats()
		return out, nil
	})
}
