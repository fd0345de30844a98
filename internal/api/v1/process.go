// Package v1 exposes the pipeline over HTTP via huma-generated routes.
package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/duet/internal/domain"
)

type ProcessInput struct {
	Body struct {
		UserID  string `json:"user_id" minLength:"1" maxLength:"128" doc:"Caller identity, used for session continuity"`
		Message string `json:"message" minLength:"1" maxLength:"8192" doc:"The user's request"`
	}
}

type ProcessOutput struct {
	Body domain.Result
}

func RegisterProcessRoutes(api huma.API, pipeline Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "process-message",
		Method:      http.MethodPost,
		Path:        "/process",
		Summary:     "Run a message through the two-model pipeline",
		Tags:        []string{"Pipeline"},
	}, func(ctx context.Context, input *ProcessInput) (*ProcessOutput, error) {
		result, err := pipeline.Handle(ctx, input.Body.UserID, input.Body.Message)
		if err != nil {
			if errors.Is(err, domain.ErrBadInput) {
				return nil, huma.Error400BadRequest("invalid request", err)
			}
			return nil, huma.Error500InternalServerError("pipeline failed", err)
		}

		return &ProcessOutput{Body: result}, nil
	})
}
