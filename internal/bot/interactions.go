package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/worker"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

type interactionHandler func(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error

func (b *Bot) handlers() map[string]interactionHandler {
	return map[string]interactionHandler{
		ButtonCreateTicket: b.createTicket,
		ButtonCloseTicket:  b.closeTicket,
		ButtonSetPriority:  b.choosePriority,
		ButtonAssignTicket: b.chooseAssignee,
		ButtonReopenTicket: b.reopenTicket,
		ButtonNextStep:     b.nextStep,
		SelectPriority:     b.applyPriority,
		SelectAssignee:     b.applyAssignee,
	}
}

// HandleInteraction dispatches a component interaction by custom id.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := i.MessageComponentData().CustomID
	handler, ok := b.handlers()[customID]
	if !ok {
		b.logger.Debug("unhandled component", zap.String("custom_id", customID))
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}
	log := b.logger.With(
		zap.String("action", customID),
		zap.String("user_id", user.ID),
		zap.String("ticket_id", i.ChannelID),
	)

	err := handler(ctx, i, user)
	switch {
	case err == nil:
		b.metrics.RecordAction(customID, observability.OutcomeOK)
		log.Debug("interaction handled")
	case apperrors.IsOperational(err):
		b.metrics.RecordAction(customID, observability.OutcomeFailed)
		b.metrics.RecordError(customID, codeOf(err))
		log.Error("interaction failed", zap.Error(err))
		b.alerts.Alert(ctx, customID, i.ChannelID, user.ID, err)
		b.respond(ctx, i, ephemeral(msgSomethingFailed))
	default:
		b.metrics.RecordAction(customID, observability.OutcomeRejected)
		log.Info("interaction rejected", zap.String("code", codeOf(err)))
		b.respond(ctx, i, ephemeral(rejectionText(err)))
	}
}

func (b *Bot) createTicket(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	guildID := b.discord.GuildID
	if guildID == "" {
		guildID = i.GuildID
	}

	channel, err := b.client.CreateChannel(ctx, guildID, discordgo.GuildChannelCreateData{
		Name:                 ticketChannelName(user.Username),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             b.discord.TicketCategoryID,
		PermissionOverwrites: ticketOverwrites(guildID, user.ID, b.discord.SupportRoleID),
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			// unknown guild or category is a configuration fault, not a user one
			return apperrors.NewPlatformError("create channel", err)
		}
		return err
	}

	ticket, err := b.tickets.Create(ctx, user.ID, channel.ID, channel.Name)
	if err != nil {
		// a channel without a record would be an orphan; take it back down
		if delErr := b.client.DeleteChannel(ctx, channel.ID); delErr != nil {
			b.logger.Warn("remove orphan ticket channel failed", zap.String("ticket_id", channel.ID), zap.Error(delErr))
		}
		return err
	}

	b.respond(ctx, i, ephemeral(fmt.Sprintf(msgChannelCreated, "<#"+channel.ID+">")))

	if _, err := b.client.Send(ctx, channel.ID, ticketPanelMessage(channel.ID, b.discord.SupportRoleID, ticket.CreatedAt)); err != nil {
		// the ticket is usable without its panel; the user already has the link
		b.metrics.RecordError(ButtonCreateTicket, codeOf(err))
		b.logger.Error("ticket panel failed", zap.String("ticket_id", channel.ID), zap.Error(err))
		b.alerts.Alert(ctx, ButtonCreateTicket, channel.ID, user.ID, err)
	}
	return nil
}

func (b *Bot) closeTicket(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	channelID := i.ChannelID
	ticket, err := b.tickets.Close(ctx, user.ID, channelID)
	if err != nil {
		return err
	}
	b.respond(ctx, i, public(msgTicketClosed))

	request, err := b.client.Send(ctx, channelID, &discordgo.MessageSend{Content: msgFeedbackRequest})
	if err != nil {
		// the interaction is already answered; alert operators and skip to teardown
		b.metrics.RecordError(ButtonCloseTicket, codeOf(err))
		b.logger.Error("feedback request failed", zap.String("ticket_id", channelID), zap.Error(err))
		b.alerts.Alert(ctx, ButtonCloseTicket, channelID, user.ID, err)
		b.teardown.Schedule(channelID)
		return nil
	}
	b.feedback.Await(channelID, ticket.OwnerID, b.settings.FeedbackTimeout, func(result worker.FeedbackResult) {
		b.finishFeedback(request, result)
	})

	// a reopen that committed before Await found no wait to cancel
	current, err := b.tickets.Get(ctx, channelID)
	if err != nil {
		b.logger.Warn("recheck after close failed", zap.String("ticket_id", channelID), zap.Error(err))
		return nil
	}
	if current.IsOpen() {
		b.feedback.Cancel(channelID)
	}
	return nil
}

// finishFeedback runs once per close, on reply, timeout or cancellation.
func (b *Bot) finishFeedback(request *discordgo.Message, result worker.FeedbackResult) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	log := b.logger.With(zap.String("ticket_id", result.ChannelID), zap.String("outcome", string(result.Outcome)))

	var (
		reply *discordgo.MessageSend
		text  string
	)
	switch result.Outcome {
	case events.FeedbackReceived:
		reply = replyTo(result.Message, msgFeedbackReceived)
		text = preview(result.Message.Content)
	case events.FeedbackTimedOut:
		reply = replyTo(request, msgFeedbackTimeout)
	}
	if reply != nil {
		if _, err := b.client.Send(ctx, result.ChannelID, reply); err != nil {
			b.metrics.RecordError("feedback", codeOf(err))
			log.Warn("feedback acknowledgement failed", zap.Error(err))
		}
	}

	b.tickets.RecordFeedback(ctx, result.ChannelID, result.OwnerID, result.Outcome, text)
	if result.Outcome != events.FeedbackCancelled {
		b.teardown.Schedule(result.ChannelID)
	}
	log.Info("feedback window ended")
}

func (b *Bot) choosePriority(ctx context.Context, i *discordgo.Interaction, _ *discordgo.User) error {
	ticket, err := b.openTicket(ctx, i.ChannelID)
	if err != nil {
		return err
	}
	b.respond(ctx, i, priorityPicker(ticket.Priority))
	return nil
}

func (b *Bot) applyPriority(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	values := i.MessageComponentData().Values
	if len(values) != 1 {
		return apperrors.NewValidationError("exactly one priority required", nil)
	}
	priority, err := domain.ParsePriority(values[0])
	if err != nil {
		return err
	}
	if _, err := b.tickets.SetPriority(ctx, user.ID, i.ChannelID, priority); err != nil {
		return err
	}
	b.respond(ctx, i, replaceSelection(fmt.Sprintf(msgPrioritySet, priority)))
	return nil
}

func (b *Bot) chooseAssignee(ctx context.Context, i *discordgo.Interaction, _ *discordgo.User) error {
	if _, err := b.openTicket(ctx, i.ChannelID); err != nil {
		return err
	}
	b.respond(ctx, i, assigneePicker())
	return nil
}

func (b *Bot) applyAssignee(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	values := i.MessageComponentData().Values
	if len(values) != 1 {
		return apperrors.NewValidationError("exactly one assignee required", nil)
	}
	if _, err := b.tickets.Assign(ctx, user.ID, i.ChannelID, values[0]); err != nil {
		return err
	}
	b.respond(ctx, i, replaceSelection(fmt.Sprintf(msgTicketAssigned, "<@"+values[0]+">")))
	return nil
}

func (b *Bot) reopenTicket(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	if _, err := b.tickets.Reopen(ctx, user.ID, i.ChannelID); err != nil {
		return err
	}
	b.feedback.Cancel(i.ChannelID)
	b.teardown.Cancel(i.ChannelID)
	b.respond(ctx, i, ephemeral(msgReopenTicket))
	return nil
}

func (b *Bot) nextStep(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) error {
	if _, err := b.tickets.NextStep(ctx, user.ID, i.ChannelID); err != nil {
		return err
	}
	b.respond(ctx, i, ephemeral(msgMultiStep))
	return nil
}

// openTicket loads the channel's ticket and rejects closed ones before a picker is shown.
func (b *Bot) openTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := b.tickets.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewTicketClosed(channelID)
	}
	return ticket, nil
}

func (b *Bot) respond(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.client.Respond(ctx, i, resp); err != nil {
		b.metrics.RecordError("respond", codeOf(err))
		b.logger.Warn("interaction response failed", zap.String("ticket_id", i.ChannelID), zap.Error(err))
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func rejectionText(err error) string {
	switch codeOf(err) {
	case apperrors.CodeNotFound:
		return msgNotATicket
	case apperrors.CodeTicketClosed:
		return msgTicketIsClosed
	case apperrors.CodeInvalidTransition:
		return msgInvalidTransition
	case apperrors.CodeConflict:
		return msgCannotReopen
	case apperrors.CodeValidation:
		return msgInvalidSelection
	default:
		return msgSomethingFailed
	}
}

func codeOf(err error) string {
	return apperrors.CodeOf(err)
}
