package domain

import (
	"sort"
	"strings"
	"time"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels selectable by staff.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Priorities lists the selectable priorities in display order.
var Priorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh}

// ParsePriority matches a priority name case-insensitively.
func ParsePriority(value string) (TicketPriority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(value)) {
			return p, nil
		}
	}
	return "", apperrors.NewValidationError("unknown priority", map[string]any{"priority": value})
}

// Ticket is the persisted record of a ticket channel. The channel id is the
// map key in the store and is not repeated in the record.
type Ticket struct {
	OwnerID          string         `json:"ownerId"`
	CreatedAt        time.Time      `json:"createdAt"`
	ClosedAt         *time.Time     `json:"closedAt"`
	Status           TicketStatus   `json:"status"`
	Priority         TicketPriority `json:"priority"`
	AssignedTo       *string        `json:"assignedTo"`
	Steps            []time.Time    `json:"steps"`
	ChannelDeletedAt *time.Time     `json:"channelDeletedAt,omitempty"`
}

// TicketMap is the whole persisted document, keyed by channel id.
type TicketMap map[string]*Ticket

// IDs returns the ticket ids in lexical order.
func (m TicketMap) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewTicket builds the record for a freshly provisioned channel.
func NewTicket(ownerID string, now time.Time) *Ticket {
	return &Ticket{
		OwnerID:   ownerID,
		CreatedAt: now.UTC(),
		Status:    TicketStatusOpen,
		Priority:  TicketPriorityMedium,
		Steps:     []time.Time{},
	}
}

// IsOpen reports whether the ticket accepts staff mutations.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// Close moves an open ticket to closed.
func (t *Ticket) Close(now time.Time) error {
	if t.Status != TicketStatusOpen {
		return apperrors.NewInvalidTransition(string(t.Status), string(TicketStatusClosed))
	}
	closedAt := now.UTC()
	t.Status = TicketStatusClosed
	t.ClosedAt = &closedAt
	return nil
}

// Reopen moves a closed ticket back to open and clears closedAt.
func (t *Ticket) Reopen(id string) error {
	if t.Status != TicketStatusClosed {
		return apperrors.NewInvalidTransition(string(t.Status), string(TicketStatusOpen))
	}
	if t.ChannelDeletedAt != nil {
		return apperrors.NewConflict("ticket channel already deleted", map[string]any{"ticket_id": id})
	}
	t.Status = TicketStatusOpen
	t.ClosedAt = nil
	return nil
}

// SetPriority changes the priority of an open ticket.
func (t *Ticket) SetPriority(id string, priority TicketPriority) error {
	if !t.IsOpen() {
		return apperrors.NewTicketClosed(id)
	}
	t.Priority = priority
	return nil
}

// Assign records the support agent responsible for an open ticket.
func (t *Ticket) Assign(id, agentID string) error {
	if !t.IsOpen() {
		return apperrors.NewTicketClosed(id)
	}
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewValidationError("assignee required", nil)
	}
	t.AssignedTo = &agentID
	return nil
}

// AdvanceStep appends a step timestamp. Steps never decrease: a clock that
// moved backwards is clamped to the previous step.
func (t *Ticket) AdvanceStep(id string, now time.Time) error {
	if !t.IsOpen() {
		return apperrors.NewTicketClosed(id)
	}
	at := now.UTC()
	if n := len(t.Steps); n > 0 && at.Before(t.Steps[n-1]) {
		at = t.Steps[n-1]
	}
	t.Steps = append(t.Steps, at)
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		out.ClosedAt = &v
	}
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		out.AssignedTo = &v
	}
	if t.ChannelDeletedAt != nil {
		v := *t.ChannelDeletedAt
		out.ChannelDeletedAt = &v
	}
	out.Steps = append([]time.Time{}, t.Steps...)
	return &out
}
