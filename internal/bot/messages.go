package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-bot/internal/observability"
)

// HandleMessage routes a plain message: a pending feedback wait sees it
// first, then FAQ answers in the FAQ channel, then keyword suggestions.
func (b *Bot) HandleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	if b.feedback != nil && b.feedback.Offer(msg) {
		return
	}

	content := strings.ToLower(msg.Content)
	if b.discord.FAQChannelID != "" && msg.ChannelID == b.discord.FAQChannelID {
		if answer, ok := b.faqAnswer(content); ok {
			b.reply(ctx, "faq", msg, answer)
			return
		}
	}

	if containsAny(content, b.responses.AutoReply.Triggers) && b.limiter.Allow(msg.ChannelID) {
		b.reply(ctx, "auto_reply", msg, b.responses.AutoReply.Reply)
	}
}

func (b *Bot) faqAnswer(content string) (string, bool) {
	for _, entry := range b.responses.FAQ {
		if containsAny(content, entry.Keywords) {
			return entry.Answer, true
		}
	}
	return "", false
}

func (b *Bot) reply(ctx context.Context, action string, msg *discordgo.Message, content string) {
	if content == "" {
		return
	}
	if _, err := b.client.Send(ctx, msg.ChannelID, replyTo(msg, content)); err != nil {
		b.metrics.RecordAction(action, observability.OutcomeFailed)
		b.metrics.RecordError(action, codeOf(err))
		b.logger.Warn("reply failed", zap.String("action", action), zap.String("channel_id", msg.ChannelID), zap.Error(err))
		return
	}
	b.metrics.RecordAction(action, observability.OutcomeOK)
}

func containsAny(content string, words []string) bool {
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" && strings.Contains(content, w) {
			return true
		}
	}
	return false
}

const maxTrackedChannels = 4096

// channelLimiter allows one automatic reply per channel per interval.
type channelLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func newChannelLimiter(interval time.Duration) *channelLimiter {
	return &channelLimiter{interval: interval, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether channelID may receive an automatic reply now.
// A non-positive interval disables throttling.
func (l *channelLimiter) Allow(channelID string) bool {
	if l.interval <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[channelID]
	if !ok {
		if len(l.limiters) >= maxTrackedChannels {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[channelID] = lim
	}
	return lim.Allow()
}
