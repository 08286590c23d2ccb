package worker

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
)

// FeedbackResult is delivered exactly once per wait.
type FeedbackResult struct {
	ChannelID string
	OwnerID   string
	Outcome   events.FeedbackOutcome
	// Message is set only for FeedbackReceived.
	Message *discordgo.Message
}

// FeedbackCollector waits for the ticket owner's reply after a close.
// At most one wait exists per channel.
type FeedbackCollector struct {
	mu    sync.Mutex
	waits map[string]*feedbackWait
	tasks *scheduler.Tasks
}

type feedbackWait struct {
	ownerID string
	onDone  func(FeedbackResult)
}

// NewFeedbackCollector uses tasks for deadlines.
func NewFeedbackCollector(tasks *scheduler.Tasks) *FeedbackCollector {
	return &FeedbackCollector{waits: make(map[string]*feedbackWait), tasks: tasks}
}

func feedbackKey(channelID string) string {
	return "feedback:" + channelID
}

// Await starts a wait on channelID for ownerID. A wait already running on the
// channel ends as cancelled. onDone runs once with the outcome.
func (c *FeedbackCollector) Await(channelID, ownerID string, timeout time.Duration, onDone func(FeedbackResult)) {
	w := &feedbackWait{ownerID: ownerID, onDone: onDone}

	c.mu.Lock()
	previous := c.waits[channelID]
	c.waits[channelID] = w
	scheduled := c.tasks.After(feedbackKey(channelID), timeout, func() {
		c.finish(channelID, w, FeedbackResult{Outcome: events.FeedbackTimedOut})
	})
	if !scheduled {
		delete(c.waits, channelID)
	}
	c.mu.Unlock()

	if previous != nil {
		previous.onDone(FeedbackResult{ChannelID: channelID, OwnerID: previous.ownerID, Outcome: events.FeedbackCancelled})
	}
	if !scheduled {
		onDone(FeedbackResult{ChannelID: channelID, OwnerID: ownerID, Outcome: events.FeedbackCancelled})
	}
}

// Offer hands an inbound message to the wait on its channel. It reports true
// when the message was the owner's reply and ended the wait.
func (c *FeedbackCollector) Offer(msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return false
	}
	c.mu.Lock()
	w, ok := c.waits[msg.ChannelID]
	c.mu.Unlock()
	if !ok || w.ownerID != msg.Author.ID {
		return false
	}
	return c.finish(msg.ChannelID, w, FeedbackResult{Outcome: events.FeedbackReceived, Message: msg})
}

// Cancel ends the wait on channelID without a reply.
func (c *FeedbackCollector) Cancel(channelID string) bool {
	c.mu.Lock()
	w, ok := c.waits[channelID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.finish(channelID, w, FeedbackResult{Outcome: events.FeedbackCancelled})
}

// Waiting reports whether channelID has an open wait.
func (c *FeedbackCollector) Waiting(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.waits[channelID]
	return ok
}

// finish delivers result if w is still the channel's current wait.
func (c *FeedbackCollector) finish(channelID string, w *feedbackWait, result FeedbackResult) bool {
	c.mu.Lock()
	if c.waits[channelID] != w {
		c.mu.Unlock()
		return false
	}
	delete(c.waits, channelID)
	if result.Outcome != events.FeedbackTimedOut {
		c.tasks.Cancel(feedbackKey(channelID))
	}
	c.mu.Unlock()

	result.ChannelID = channelID
	result.OwnerID = w.ownerID
	w.onDone(result)
	return true
}
