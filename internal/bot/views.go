package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Component custom ids.
const (
	ButtonCreateTicket = "create_ticket"
	ButtonCloseTicket  = "close_ticket"
	ButtonSetPriority  = "set_priority"
	ButtonAssignTicket = "assign_ticket"
	ButtonReopenTicket = "reopen_ticket"
	ButtonNextStep     = "next_step"
	SelectPriority     = "select_priority"
	SelectAssignee     = "select_assignee"
)

// User-facing text.
const (
	msgWelcome          = "Click the button below to create a support ticket."
	msgTicketCreated    = "Your ticket has been created!"
	msgTicketClosed     = "This ticket has been closed."
	msgFeedbackRequest  = "Please provide feedback on your ticket closure:"
	msgFeedbackReceived = "Thank you for your feedback!"
	msgFeedbackTimeout  = "Feedback collection time has ended."
	msgPrioritySet      = "Priority has been set to %s."
	msgTicketAssigned   = "Your ticket has been assigned to %s."
	msgReopenTicket     = "Your ticket has been reopened."
	msgMultiStep        = "Your ticket has entered the next step of the resolution process."
	msgChannelCreated   = "Your ticket channel has been created: %s"
	msgChoosePriority   = "Choose a priority for this ticket:"
	msgChooseAgent      = "Choose a support agent for this ticket:"

	msgNotATicket        = "This channel is not a ticket."
	msgTicketIsClosed    = "This ticket is closed. Reopen it first."
	msgInvalidTransition = "That action is not available for this ticket right now."
	msgCannotReopen      = "This ticket can no longer be reopened."
	msgInvalidSelection  = "That selection is not valid."
	msgSomethingFailed   = "Something went wrong. The support team has been notified."
)

const (
	colorInfo = 0x00AAFF

	feedbackPreviewLen = 100
)

func panelMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Support Ticket System",
			Description: msgWelcome,
			Color:       colorInfo,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: ButtonCreateTicket, Label: "Create Ticket", Style: discordgo.PrimaryButton},
			}},
		},
	}
}

func ticketPanelMessage(channelID, supportRoleID string, createdAt time.Time) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       msgTicketCreated,
			Description: fmt.Sprintf("Ticket ID: %s\nCreated At: <t:%d:F>", channelID, createdAt.Unix()),
			Color:       colorInfo,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: ButtonCloseTicket, Label: "Close Ticket", Style: discordgo.DangerButton},
				discordgo.Button{CustomID: ButtonSetPriority, Label: "Set Priority", Style: discordgo.SecondaryButton},
				discordgo.Button{CustomID: ButtonAssignTicket, Label: "Assign Ticket", Style: discordgo.SecondaryButton},
				discordgo.Button{CustomID: ButtonReopenTicket, Label: "Reopen Ticket", Style: discordgo.PrimaryButton},
				discordgo.Button{CustomID: ButtonNextStep, Label: "Next Step", Style: discordgo.PrimaryButton},
			}},
		},
	}
	if supportRoleID != "" {
		msg.Content = "<@&" + supportRoleID + ">"
	}
	return msg
}

func priorityPicker(current domain.TicketPriority) *discordgo.InteractionResponse {
	options := make([]discordgo.SelectMenuOption, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		options = append(options, discordgo.SelectMenuOption{
			Label:   string(p),
			Value:   string(p),
			Default: p == current,
		})
	}
	return ephemeralWith(msgChoosePriority, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    SelectPriority,
			Placeholder: "Priority",
			Options:     options,
		},
	}})
}

func assigneePicker() *discordgo.InteractionResponse {
	return ephemeralWith(msgChooseAgent, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:    discordgo.UserSelectMenu,
			CustomID:    SelectAssignee,
			Placeholder: "Support agent",
		},
	}})
}

// ticketOverwrites hides the channel from @everyone (the guild id doubles as
// the @everyone role id) and opens it to the owner and the support role.
func ticketOverwrites(guildID, ownerID, supportRoleID string) []*discordgo.PermissionOverwrite {
	const access = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: access},
	}
	if supportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: supportRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: access,
		})
	}
	return overwrites
}

func ticketChannelName(username string) string {
	name := strings.ToLower(strings.Join(strings.Fields(username), "-"))
	if name == "" {
		name = "user"
	}
	return "ticket-" + name
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return ephemeralWith(content)
}

func ephemeralWith(content string, components ...discordgo.MessageComponent) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	}
}

func public(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}
}

// replaceSelection swaps an ephemeral picker for the confirmation text.
func replaceSelection(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}

func replyTo(msg *discordgo.Message, content string) *discordgo.MessageSend {
	return &discordgo.MessageSend{Content: content, Reference: msg.Reference()}
}

func preview(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= feedbackPreviewLen {
		return string(runes)
	}
	return string(runes[:feedbackPreviewLen]) + "…"
}
