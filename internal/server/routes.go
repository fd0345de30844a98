package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/duet/internal/api/v1"
	"github.com/gosuda/duet/internal/errlog"
	duetslack "github.com/gosuda/duet/internal/messenger/slack"
	"github.com/gosuda/duet/internal/orchestrator"
)

func registerAPIRoutes(api huma.API, pipeline *orchestrator.Orchestrator, errs *errlog.Sink) {
	v1.RegisterProcessRoutes(api, pipeline)
	v1.RegisterHealthRoutes(api, pipeline)
	if errs != nil {
		v1.RegisterErrorRoutes(api, errs)
	}
}

func registerSlackRoutes(r chi.Router, handler *duetslack.Handler) {
	r.Post("/events", handler.HandleEvents)
}
