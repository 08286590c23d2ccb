package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketClosed          EventType = "ticket_closed"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketStepAdvanced    EventType = "ticket_step_advanced"
	EventFeedbackCollected     EventType = "ticket_feedback_collected"
	EventTicketChannelDeleted  EventType = "ticket_channel_deleted"
)

// TicketEventTypes lists every ticket lifecycle event, in lifecycle order.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketPriorityChanged,
	EventTicketAssigned,
	EventTicketStepAdvanced,
	EventTicketClosed,
	EventFeedbackCollected,
	EventTicketReopened,
	EventTicketChannelDeleted,
}

// Actor identifies who triggered an event. An empty UserID means the bot itself.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
}

// IsSystem reports whether the bot acted on its own (timers, recovery).
func (a Actor) IsSystem() bool {
	return a.UserID == ""
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID     string `json:"owner_id"`
	ChannelName string `json:"channel_name"`
}

// TicketStatusChangedPayload payload for close and reopen.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string  `json:"assignee_id"`
	PreviousID *string `json:"previous_id,omitempty"`
}

// TicketStepAdvancedPayload payload.
type TicketStepAdvancedPayload struct {
	Step int       `json:"step"`
	At   time.Time `json:"at"`
}

// FeedbackOutcome describes how a feedback window ended.
type FeedbackOutcome string

const (
	FeedbackReceived  FeedbackOutcome = "received"
	FeedbackTimedOut  FeedbackOutcome = "timed_out"
	FeedbackCancelled FeedbackOutcome = "cancelled"
)

// FeedbackCollectedPayload payload.
type FeedbackCollectedPayload struct {
	Outcome FeedbackOutcome `json:"outcome"`
	Preview string          `json:"preview,omitempty"`
}
