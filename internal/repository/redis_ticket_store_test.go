package repository_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisTicketStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) repository.TicketStore {
		_, client := newRedisClient(t)
		return repository.NewRedisTicketStore(client, "test")
	})
}

func TestRedisTicketStoreKeyLayout(t *testing.T) {
	mr, client := newRedisClient(t)
	store := repository.NewRedisTicketStore(client, "bot")

	require.NoError(t, store.Create(context.Background(), "555", domain.NewTicket("owner", created)))

	assert.True(t, mr.Exists("bot:ticket:555"))
	members, err := mr.Members("bot:tickets")
	require.NoError(t, err)
	assert.Equal(t, []string{"555"}, members)
}

func TestRedisTicketStoreUnavailableIsStorageError(t *testing.T) {
	mr, client := newRedisClient(t)
	store := repository.NewRedisTicketStore(client, "bot")
	mr.Close()

	_, err := store.Get(context.Background(), "1")
	assert.True(t, apperrors.IsStorage(err))
	assert.True(t, apperrors.IsStorage(store.Ping(context.Background())))
}
