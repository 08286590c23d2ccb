package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

const (
	alertTimeout = 10 * time.Second
	alertColor   = 0xFFA500
)

// Alerter posts storage and platform failures to the operator channel.
// A nil Alerter, or one without a channel, drops alerts.
type Alerter struct {
	client    platform.Client
	channelID string
	logger    *zap.Logger
}

// NewAlerter creates an alerter posting to channelID.
func NewAlerter(client platform.Client, channelID string, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{client: client, channelID: channelID, logger: logger}
}

// Alert reports a failed action. userID is empty for background jobs. The
// send outlives ctx so a failure caused by an expired deadline still reaches
// operators.
func (a *Alerter) Alert(ctx context.Context, action, channelID, userID string, cause error) {
	if a == nil || a.channelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	if _, err := a.client.Send(ctx, a.channelID, AlertMessage(action, channelID, userID, cause)); err != nil {
		a.logger.Warn("operator alert failed", zap.String("action", action), zap.Error(err))
	}
}

// AlertMessage renders one operator alert.
func AlertMessage(action, channelID, userID string, cause error) *discordgo.MessageSend {
	user := "System"
	if userID != "" {
		user = "<@" + userID + ">"
	}
	channel := "-"
	if channelID != "" {
		channel = "<#" + channelID + ">"
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Operator Alert",
			Description: fmt.Sprintf("`%s` failed: %v", action, cause),
			Color:       alertColor,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "User", Value: user, Inline: true},
				{Name: "Channel", Value: channel, Inline: true},
			},
		}},
	}
}
