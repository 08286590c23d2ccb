package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// LoginRequest payload.
type LoginRequest struct {
	Password string `json:"password"`
}

// AuthResponse returns token info.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketListQuery captures dashboard listing filters.
type TicketListQuery struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Assignee *string
}

// Matches reports whether ticket passes every set filter.
func (q TicketListQuery) Matches(ticket *domain.Ticket) bool {
	if q.Status != nil && ticket.Status != *q.Status {
		return false
	}
	if q.Priority != nil && ticket.Priority != *q.Priority {
		return false
	}
	if q.Assignee != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *q.Assignee) {
		return false
	}
	return true
}

// TicketResponse is the dashboard view of a ticket.
type TicketResponse struct {
	ID               string                `json:"id"`
	OwnerID          string                `json:"owner_id"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	AssignedTo       *string               `json:"assigned_to"`
	Steps            []time.Time           `json:"steps"`
	CreatedAt        time.Time             `json:"created_at"`
	ClosedAt         *time.Time            `json:"closed_at"`
	ChannelDeletedAt *time.Time            `json:"channel_deleted_at,omitempty"`
}

// NewTicketResponse maps a stored record.
func NewTicketResponse(id string, t *domain.Ticket) TicketResponse {
	steps := t.Steps
	if steps == nil {
		steps = []time.Time{}
	}
	return TicketResponse{
		ID:               id,
		OwnerID:          t.OwnerID,
		Status:           t.Status,
		Priority:         t.Priority,
		AssignedTo:       t.AssignedTo,
		Steps:            steps,
		CreatedAt:        t.CreatedAt,
		ClosedAt:         t.ClosedAt,
		ChannelDeletedAt: t.ChannelDeletedAt,
	}
}

// StatsResponse combines store aggregates with process counters.
type StatsResponse struct {
	Tickets  service.TicketStats    `json:"tickets"`
	Counters observability.Snapshot `json:"counters"`
}
