package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const teardownTimeout = 15 * time.Second

// Teardown deletes the channels of closed tickets after a delay.
type Teardown struct {
	tasks   *scheduler.Tasks
	tickets *service.TicketService
	client  platform.Client
	alerts  *Alerter
	delay   time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewTeardown wires the teardown worker. Operational failures go to alerts.
func NewTeardown(tasks *scheduler.Tasks, tickets *service.TicketService, client platform.Client, alerts *Alerter, delay time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Teardown {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Teardown{
		tasks:   tasks,
		tickets: tickets,
		client:  client,
		alerts:  alerts,
		delay:   delay,
		logger:  logger,
		metrics: metrics,
	}
}

func teardownKey(channelID string) string {
	return "teardown:" + channelID
}

// Schedule queues deletion of channelID after the configured delay.
func (t *Teardown) Schedule(channelID string) {
	if t.tasks.After(teardownKey(channelID), t.delay, func() { t.run(channelID) }) {
		t.logger.Debug("teardown scheduled", zap.String("ticket_id", channelID), zap.Duration("delay", t.delay))
	}
}

// Cancel drops a pending teardown.
func (t *Teardown) Cancel(channelID string) bool {
	return t.tasks.Cancel(teardownKey(channelID))
}

// Pending reports whether a teardown is queued for channelID.
func (t *Teardown) Pending(channelID string) bool {
	return t.tasks.Pending(teardownKey(channelID))
}

// Recover re-queues teardown for closed tickets whose channel still exists.
func (t *Teardown) Recover(ctx context.Context) (int, error) {
	pending, err := t.tickets.PendingTeardowns(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range pending {
		t.Schedule(entry.ID)
	}
	if len(pending) > 0 {
		t.logger.Info("teardown recovered", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

func (t *Teardown) run(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	log := t.logger.With(zap.String("ticket_id", channelID))

	ticket, err := t.tickets.Get(ctx, channelID)
	if err != nil {
		t.fail(ctx, log, channelID, "load ticket", err)
		return
	}
	if ticket.IsOpen() || ticket.ChannelDeletedAt != nil {
		log.Debug("teardown skipped", zap.String("status", string(ticket.Status)))
		return
	}

	if err := t.client.DeleteChannel(ctx, channelID); err != nil {
		if !apperrors.IsNotFound(err) {
			t.fail(ctx, log, channelID, "delete channel", err)
			return
		}
		log.Info("ticket channel already gone")
	}

	if _, err := t.tickets.MarkChannelDeleted(ctx, channelID); err != nil {
		t.fail(ctx, log, channelID, "mark channel deleted", err)
		return
	}
	t.metrics.RecordAction("teardown", observability.OutcomeOK)
	log.Info("ticket channel deleted")
}

func (t *Teardown) fail(ctx context.Context, log *zap.Logger, channelID, step string, err error) {
	t.metrics.RecordAction("teardown", observability.OutcomeFailed)
	t.metrics.RecordError("teardown", apperrors.CodeOf(err))
	log.Warn("teardown failed", zap.String("step", step), zap.Error(err))
	if apperrors.IsOperational(err) {
		t.alerts.Alert(ctx, "teardown: "+step, channelID, "", err)
	}
}
