package v1

import (
	"context"

	"github.com/gosuda/duet/internal/domain"
	"github.com/gosuda/duet/internal/errlog"
)

// Pipeline abstracts the orchestrator for handler testing.
// *orchestrator.Orchestrator satisfies this interface.
type Pipeline interface {
	Handle(ctx context.Context, userID, message string) (domain.Result, error)
	Health() map[string]string
}

// ErrorLog abstracts the in-memory error sink for handler testing.
// *errlog.Sink satisfies this interface.
type ErrorLog interface {
	Recent(n int) []errlog.Record
	Stats() errlog.Stats
}
