package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

var created = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// runStoreContract exercises the behaviour every TicketStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) repository.TicketStore) {
	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, "chan-1", domain.NewTicket("owner-1", created)))

		got, err := store.Get(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.Equal(t, domain.TicketStatusOpen, got.Status)
		assert.Equal(t, domain.TicketPriorityMedium, got.Priority)
		assert.Nil(t, got.AssignedTo)
		assert.Nil(t, got.ClosedAt)
		assert.Empty(t, got.Steps)
		assert.True(t, created.Equal(got.CreatedAt))
	})

	t.Run("create duplicate conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, "chan-1", domain.NewTicket("owner-1", created)))
		err := store.Create(ctx, "chan-1", domain.NewTicket("owner-2", created))
		assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))

		got, err := store.Get(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.OwnerID)
	})

	t.Run("missing ticket is not found", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, "nope")
		assert.True(t, apperrors.IsNotFound(err))

		_, err = store.Update(ctx, "nope", func(*domain.Ticket) error { return nil })
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("update persists mutation", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, "chan-1", domain.NewTicket("owner-1", created)))

		updated, err := store.Update(ctx, "chan-1", func(ticket *domain.Ticket) error {
			if err := ticket.SetPriority("chan-1", domain.TicketPriorityHigh); err != nil {
				return err
			}
			return ticket.Close(created.Add(time.Hour))
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, updated.Status)

		got, err := store.Get(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, got.Priority)
		assert.Equal(t, domain.TicketStatusClosed, got.Status)
		require.NotNil(t, got.ClosedAt)
		assert.True(t, created.Add(time.Hour).Equal(*got.ClosedAt))
	})

	t.Run("failed mutation writes nothing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, "chan-1", domain.NewTicket("owner-1", created)))

		boom := errors.New("boom")
		_, err := store.Update(ctx, "chan-1", func(ticket *domain.Ticket) error {
			ticket.Priority = domain.TicketPriorityLow
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityMedium, got.Priority)
	})

	t.Run("concurrent updates to different tickets are not lost", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		ids := []string{"chan-a", "chan-b"}
		for _, id := range ids {
			require.NoError(t, store.Create(ctx, id, domain.NewTicket("owner-"+id, created)))
		}

		const perTicket = 20
		var wg sync.WaitGroup
		errs := make(chan error, perTicket*len(ids))
		for i := 0; i < perTicket; i++ {
			for _, id := range ids {
				wg.Add(1)
				go func(id string, step int) {
					defer wg.Done()
					_, err := store.Update(ctx, id, func(ticket *domain.Ticket) error {
						return ticket.AdvanceStep(id, created.Add(time.Duration(step)*time.Second))
					})
					errs <- err
				}(id, i)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := store.Load(ctx)
		require.NoError(t, err)
		for _, id := range ids {
			require.Contains(t, all, id)
			steps := all[id].Steps
			assert.Len(t, steps, perTicket, "lost update on %s", id)
			for i := 1; i < len(steps); i++ {
				assert.False(t, steps[i].Before(steps[i-1]))
			}
		}
	})

	t.Run("save replaces the whole document", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, "old", domain.NewTicket("owner-1", created)))

		agent := "agent-7"
		replacement := domain.NewTicket("owner-2", created)
		replacement.AssignedTo = &agent
		require.NoError(t, store.Save(ctx, domain.TicketMap{"new": replacement}))

		all, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, all.IDs())
		require.NotNil(t, all["new"].AssignedTo)
		assert.Equal(t, "agent-7", *all["new"].AssignedTo)

		_, err = store.Get(ctx, "old")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}
