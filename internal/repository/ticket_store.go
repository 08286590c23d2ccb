package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// MutateFunc changes a ticket in place. Returning an error aborts the update
// and nothing is written.
type MutateFunc func(ticket *domain.Ticket) error

// TicketStore persists the mapping from ticket id (channel id) to record.
//
// Load and Save operate on the whole document. Handlers must not pair them
// for single-ticket changes: Update runs load, mutate and save as one
// serialized unit so concurrent mutations of different tickets never lose
// each other's writes.
type TicketStore interface {
	Load(ctx context.Context) (domain.TicketMap, error)
	Save(ctx context.Context, tickets domain.TicketMap) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Create(ctx context.Context, id string, ticket *domain.Ticket) error
	Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error)
	Ping(ctx context.Context) error
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

func ticketExists(id string) error {
	return apperrors.NewConflict("ticket already exists", map[string]any{"ticket_id": id})
}

// storageErr wraps infrastructure failures; domain errors pass through untouched.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStorageError(op, err)
}
