package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	auditQueueSize   = 256
	auditSendTimeout = 10 * time.Second
	auditColor       = 0xFF0000
)

// AuditService mirrors ticket events into the log channel as embeds.
// Handlers only enqueue; Run posts in publish order so a slow platform
// never delays the interaction that caused the event.
type AuditService struct {
	dispatcher events.Dispatcher
	client     platform.Client
	channelID  string
	logger     *zap.Logger
	metrics    *observability.Metrics
	queue      chan events.Event
}

// NewAuditService creates the service. An empty channelID disables posting.
func NewAuditService(dispatcher events.Dispatcher, client platform.Client, channelID string, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		client:     client,
		channelID:  channelID,
		logger:     logger,
		metrics:    metrics,
		queue:      make(chan events.Event, auditQueueSize),
	}
}

// RegisterHandlers subscribes to every ticket event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.TicketEventTypes {
		a.dispatcher.Subscribe(eventType, a.enqueue)
	}
}

func (a *AuditService) enqueue(_ context.Context, event events.Event) error {
	if a.channelID == "" {
		return nil
	}
	select {
	case a.queue <- event:
	default:
		a.metrics.RecordError("audit", "QUEUE_FULL")
		a.logger.Warn("audit queue full, dropping entry",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Run posts queued entries until ctx is cancelled, then flushes what is left.
func (a *AuditService) Run(ctx context.Context) {
	for {
		select {
		case event := <-a.queue:
			a.post(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-a.queue:
					a.post(event)
				default:
					return
				}
			}
		}
	}
}

func (a *AuditService) post(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), auditSendTimeout)
	defer cancel()

	_, err := a.client.Send(ctx, a.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{AuditEmbed(event)},
	})
	if err != nil {
		a.metrics.RecordError("audit", apperrors.CodeOf(err))
		a.logger.Warn("audit log delivery failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// AuditEmbed renders one log channel entry.
func AuditEmbed(event events.Event) *discordgo.MessageEmbed {
	user := "System"
	if !event.Actor.IsSystem() {
		user = mention(event.Actor.UserID)
	}
	channel := channelMention(event.TicketID)
	if p, ok := event.Payload.(events.TicketCreatedPayload); ok && p.ChannelName != "" {
		channel = p.ChannelName
	}
	return &discordgo.MessageEmbed{
		Title:       "Ticket Interaction",
		Description: describe(event),
		Color:       auditColor,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: user},
			{Name: "Channel", Value: channel},
		},
	}
}

func describe(event events.Event) string {
	where := channelMention(event.TicketID)
	switch p := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return fmt.Sprintf("Ticket created by %s in %s", mention(p.OwnerID), where)
	case events.TicketPriorityChangedPayload:
		return fmt.Sprintf("Priority set to %s in %s", p.NewPriority, where)
	case events.TicketAssignedPayload:
		return fmt.Sprintf("Ticket assigned to %s in %s", mention(p.AssigneeID), where)
	case events.TicketStepAdvancedPayload:
		return fmt.Sprintf("Ticket moved to next step (%d) in %s", p.Step, where)
	case events.FeedbackCollectedPayload:
		switch p.Outcome {
		case events.FeedbackReceived:
			return fmt.Sprintf("Feedback received in %s: %s", where, p.Preview)
		case events.FeedbackTimedOut:
			return fmt.Sprintf("Feedback collection timed out in %s", where)
		default:
			return fmt.Sprintf("Feedback collection cancelled in %s", where)
		}
	}
	switch event.Type {
	case events.EventTicketClosed:
		return fmt.Sprintf("Ticket closed by %s in %s", mention(event.Actor.UserID), where)
	case events.EventTicketReopened:
		return fmt.Sprintf("Ticket reopened in %s", where)
	case events.EventTicketChannelDeleted:
		return fmt.Sprintf("Ticket channel %s deleted", event.TicketID)
	default:
		return fmt.Sprintf("%s in %s", event.Type, where)
	}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}
