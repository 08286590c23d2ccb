package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Every mutation goes through
// TicketStore.Update and publishes one event on success.
type TicketService struct {
	store      repository.TicketStore
	dispatcher events.Dispatcher
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.TicketStore
	Dispatcher events.Dispatcher
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TicketEntry pairs a record with its channel id for listings.
type TicketEntry struct {
	ID string `json:"id"`
	*domain.Ticket
}

// TicketStats aggregates the store for the dashboard.
type TicketStats struct {
	Total      int                           `json:"total"`
	ByStatus   map[domain.TicketStatus]int   `json:"by_status"`
	ByPriority map[domain.TicketPriority]int `json:"by_priority"`
	Unassigned int                           `json:"unassigned"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        clock,
	}
}

// Create records a freshly provisioned ticket channel owned by ownerID.
func (s *TicketService) Create(ctx context.Context, ownerID, channelID, channelName string) (*domain.Ticket, error) {
	if strings.TrimSpace(channelID) == "" || strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.NewValidationError("channel and owner required", nil)
	}
	ticket := domain.NewTicket(ownerID, s.now())
	if err := s.store.Create(ctx, channelID, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: channelID,
		Actor:    userActor(ownerID),
		Payload: events.TicketCreatedPayload{
			OwnerID:     ownerID,
			ChannelName: channelName,
		},
	})
	return ticket, nil
}

// Close moves an open ticket to closed.
func (s *TicketService) Close(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		return t.Close(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticketID,
		Actor:    userActor(actorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusClosed,
		},
	})
	return ticket, nil
}

// Reopen moves a closed ticket back to open.
func (s *TicketService) Reopen(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		return t.Reopen(ticketID)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticketID,
		Actor:    userActor(actorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusClosed,
			NewStatus: domain.TicketStatusOpen,
		},
	})
	return ticket, nil
}

// SetPriority updates ticket priority.
func (s *TicketService) SetPriority(ctx context.Context, actorID, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if _, err := domain.ParsePriority(string(priority)); err != nil {
		return nil, err
	}
	var oldPriority domain.TicketPriority
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		oldPriority = t.Priority
		return t.SetPriority(ticketID, priority)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticketID,
		Actor:    userActor(actorID),
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: priority,
		},
	})
	return ticket, nil
}

// Assign records the agent responsible for a ticket.
func (s *TicketService) Assign(ctx context.Context, actorID, ticketID, assigneeID string) (*domain.Ticket, error) {
	var previous *string
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		previous = t.AssignedTo
		return t.Assign(ticketID, assigneeID)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		Actor:    userActor(actorID),
		Payload: events.TicketAssignedPayload{
			AssigneeID: assigneeID,
			PreviousID: previous,
		},
	})
	return ticket, nil
}

// NextStep appends a resolution step timestamp.
func (s *TicketService) NextStep(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		return t.AdvanceStep(ticketID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStepAdvanced,
		TicketID: ticketID,
		Actor:    userActor(actorID),
		Payload: events.TicketStepAdvancedPayload{
			Step: len(ticket.Steps),
			At:   ticket.Steps[len(ticket.Steps)-1],
		},
	})
	return ticket, nil
}

// RecordFeedback publishes how a feedback window ended. It does not touch the store.
func (s *TicketService) RecordFeedback(ctx context.Context, ticketID, ownerID string, outcome events.FeedbackOutcome, preview string) {
	actor := events.Actor{}
	if outcome == events.FeedbackReceived {
		actor = userActor(ownerID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventFeedbackCollected,
		TicketID: ticketID,
		Actor:    actor,
		Payload: events.FeedbackCollectedPayload{
			Outcome: outcome,
			Preview: preview,
		},
	})
}

// MarkChannelDeleted stamps channelDeletedAt on a closed ticket. It fails with
// INVALID_TRANSITION when the ticket was reopened in the meantime.
func (s *TicketService) MarkChannelDeleted(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Update(ctx, ticketID, func(t *domain.Ticket) error {
		if t.IsOpen() {
			return apperrors.NewInvalidTransition(string(t.Status), "deleted")
		}
		if t.ChannelDeletedAt == nil {
			at := s.now().UTC()
			t.ChannelDeletedAt = &at
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketChannelDeleted,
		TicketID: ticketID,
	})
	return ticket, nil
}

// Get returns a single ticket.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.store.Get(ctx, ticketID)
}

// List returns every ticket ordered by channel id.
func (s *TicketService) List(ctx context.Context) ([]TicketEntry, error) {
	tickets, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TicketEntry, 0, len(tickets))
	for _, id := range tickets.IDs() {
		out = append(out, TicketEntry{ID: id, Ticket: tickets[id]})
	}
	return out, nil
}

// PendingTeardowns lists closed tickets whose channel was never deleted.
func (s *TicketService) PendingTeardowns(ctx context.Context) ([]TicketEntry, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, entry := range all {
		if !entry.IsOpen() && entry.ChannelDeletedAt == nil {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

// Stats aggregates counts by status and priority.
func (s *TicketService) Stats(ctx context.Context) (TicketStats, error) {
	tickets, err := s.store.Load(ctx)
	if err != nil {
		return TicketStats{}, err
	}
	stats := TicketStats{
		Total:      len(tickets),
		ByStatus:   map[domain.TicketStatus]int{},
		ByPriority: map[domain.TicketPriority]int{},
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		if t.AssignedTo == nil {
			stats.Unassigned++
		}
	}
	return stats, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func userActor(userID string) events.Actor {
	return events.Actor{UserID: userID}
}
