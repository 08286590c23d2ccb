package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const reminderSendTimeout = 10 * time.Second

// ReminderWorker posts configured reminder messages on their schedules.
type ReminderWorker struct {
	recurring *scheduler.Recurring
	client    platform.Client
	alerts    *Alerter
	reminders []config.Reminder
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu      sync.Mutex
	started bool
}

// NewReminderWorker prepares the worker; nothing runs until Start.
func NewReminderWorker(recurring *scheduler.Recurring, client platform.Client, alerts *Alerter, reminders []config.Reminder, logger *zap.Logger, metrics *observability.Metrics) *ReminderWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderWorker{
		recurring: recurring,
		client:    client,
		alerts:    alerts,
		reminders: reminders,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start registers every reminder and starts the cron runner. Calling it again
// (the gateway can report ready more than once) is a no-op.
func (w *ReminderWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	for i, r := range w.reminders {
		reminder := r
		name := fmt.Sprintf("reminder-%d", i)
		if err := w.recurring.Add(reminder.Schedule, name, func() { w.Post(reminder) }); err != nil {
			return apperrors.NewValidationError("invalid reminder schedule", map[string]any{
				"reminder": name,
				"schedule": reminder.Schedule,
				"error":    err.Error(),
			})
		}
	}
	w.recurring.Start()
	w.started = true
	return nil
}

// Post sends one reminder. Failures are logged, counted and alerted.
func (w *ReminderWorker) Post(r config.Reminder) {
	ctx, cancel := context.WithTimeout(context.Background(), reminderSendTimeout)
	defer cancel()

	if _, err := w.client.Send(ctx, r.ChannelID, &discordgo.MessageSend{Content: r.Message}); err != nil {
		w.metrics.RecordAction("reminder", observability.OutcomeFailed)
		w.metrics.RecordError("reminder", apperrors.CodeOf(err))
		w.logger.Warn("reminder delivery failed", zap.String("channel_id", r.ChannelID), zap.Error(err))
		if apperrors.IsOperational(err) {
			w.alerts.Alert(ctx, "reminder", r.ChannelID, "", err)
		}
		return
	}
	w.metrics.RecordAction("reminder", observability.OutcomeOK)
}

// Stop halts the schedule.
func (w *ReminderWorker) Stop(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		w.recurring.Stop(ctx)
	}
}
