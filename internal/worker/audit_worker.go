package worker

import (
	"context"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// StartAuditWorker registers audit handlers and posts entries until ctx is
// cancelled. The returned channel closes once the queue has been flushed.
func StartAuditWorker(ctx context.Context, audit *service.AuditService) <-chan struct{} {
	done := make(chan struct{})
	if audit == nil {
		close(done)
		return done
	}
	audit.RegisterHandlers()
	go func() {
		defer close(done)
		audit.Run(ctx)
	}()
	return done
}
