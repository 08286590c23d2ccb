// Package bot routes inbound gateway events (button presses, select menus,
// messages, ready) to the ticket workflows.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const handlerTimeout = 10 * time.Second

// Bot holds every collaborator a handler needs. Handlers run concurrently,
// one goroutine per gateway event.
type Bot struct {
	discord   config.DiscordConfig
	settings  config.TicketConfig
	responses config.Responses

	client    platform.Client
	tickets   *service.TicketService
	feedback  *worker.FeedbackCollector
	teardown  *worker.Teardown
	reminders *worker.ReminderWorker
	alerts    *worker.Alerter
	limiter   *channelLimiter

	logger  *zap.Logger
	metrics *observability.Metrics
	clock   func() time.Time

	readyOnce sync.Once
}

// Dependencies bundles the bot's collaborators.
type Dependencies struct {
	Discord   config.DiscordConfig
	Tickets   config.TicketConfig
	Responses config.Responses

	Client    platform.Client
	Service   *service.TicketService
	Feedback  *worker.FeedbackCollector
	Teardown  *worker.Teardown
	Reminders *worker.ReminderWorker
	Alerts    *worker.Alerter

	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// New builds the router.
func New(deps Dependencies) *Bot {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Bot{
		discord:   deps.Discord,
		settings:  deps.Tickets,
		responses: deps.Responses,
		client:    deps.Client,
		tickets:   deps.Service,
		feedback:  deps.Feedback,
		teardown:  deps.Teardown,
		reminders: deps.Reminders,
		alerts:    deps.Alerts,
		limiter:   newChannelLimiter(deps.Tickets.AutoReplyInterval),
		logger:    logger,
		metrics:   deps.Metrics,
		clock:     clock,
	}
}

// Register attaches the bot's handlers to a gateway session and returns a
// func that detaches them.
func (b *Bot) Register(session *discordgo.Session) func() {
	removers := []func(){
		session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			defer cancel()
			b.HandleReady(ctx, r)
		}),
		session.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			defer cancel()
			b.HandleInteraction(ctx, ic.Interaction)
		}),
		session.AddHandler(func(_ *discordgo.Session, mc *discordgo.MessageCreate) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			defer cancel()
			b.HandleMessage(ctx, mc.Message)
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

// HandleReady posts the ticket panel, starts reminders and re-queues
// unfinished teardowns. Only the first ready event of the process does this.
func (b *Bot) HandleReady(ctx context.Context, r *discordgo.Ready) {
	b.readyOnce.Do(func() {
		if r != nil && r.User != nil {
			b.logger.Info("logged in", zap.String("user", r.User.Username))
		}

		if b.discord.SupportChannelID != "" {
			if _, err := b.client.Send(ctx, b.discord.SupportChannelID, panelMessage()); err != nil {
				b.metrics.RecordError("ready", codeOf(err))
				b.logger.Error("post ticket panel failed", zap.String("channel_id", b.discord.SupportChannelID), zap.Error(err))
			}
		}

		if b.reminders != nil {
			if err := b.reminders.Start(); err != nil {
				b.logger.Error("start reminders failed", zap.Error(err))
			}
		}

		if b.teardown != nil {
			if _, err := b.teardown.Recover(ctx); err != nil {
				b.metrics.RecordError("ready", codeOf(err))
				b.logger.Error("teardown recovery failed", zap.Error(err))
			}
		}
	})
}
