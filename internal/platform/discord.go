// Package platform is the thin boundary between the bot and Discord.
package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Intents the bot needs: guild channels, guild messages with content, members.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentMessageContent |
	discordgo.IntentsGuildMembers

// Client is the set of outbound platform calls the bot makes.
type Client interface {
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteChannel(ctx context.Context, channelID string) error
	Respond(ctx context.Context, interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error
}

// NewSession builds an unopened gateway session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, apperrors.NewPlatformError("create session", err)
	}
	session.Identify.Intents = Intents
	return session, nil
}

// Discord implements Client over a discordgo session.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	channel, err := d.session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("create channel", err)
	}
	return channel, nil
}

func (d *Discord) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	sent, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("send message", err)
	}
	return sent, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return wrap("delete channel", err)
	}
	return nil
}

func (d *Discord) Respond(ctx context.Context, interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	if err := d.session.InteractionRespond(interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return wrap("respond to interaction", err)
	}
	return nil
}

// wrap maps unknown-resource responses to NOT_FOUND and everything else to PLATFORM_FAILURE.
func wrap(op string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFound("platform resource", map[string]any{"operation": op})
	}
	return apperrors.NewPlatformError(op, err)
}
