package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const redisMaxTxRetries = 50

// RedisTicketStore keeps one JSON value per ticket plus an index set of ids.
// Updates use WATCH/MULTI on the ticket key, so writers only contend per record.
type RedisTicketStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTicketStore builds a store using keys under prefix.
func NewRedisTicketStore(client *redis.Client, prefix string) *RedisTicketStore {
	if prefix == "" {
		prefix = "ticketbot"
	}
	return &RedisTicketStore{client: client, prefix: prefix}
}

func (s *RedisTicketStore) key(id string) string {
	return fmt.Sprintf("%s:ticket:%s", s.prefix, id)
}

func (s *RedisTicketStore) indexKey() string {
	return s.prefix + ":tickets"
}

func (s *RedisTicketStore) Load(ctx context.Context) (domain.TicketMap, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, storageErr("load", err)
	}
	tickets := domain.TicketMap{}
	if len(ids) == 0 {
		return tickets, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr("load", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// indexed but the value is gone; treat as absent
			continue
		}
		ticket, err := decodeTicket([]byte(raw))
		if err != nil {
			return nil, err
		}
		tickets[ids[i]] = ticket
	}
	return tickets, nil
}

func (s *RedisTicketStore) Save(ctx context.Context, tickets domain.TicketMap) error {
	existing, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return storageErr("save", err)
	}
	encoded := make(map[string][]byte, len(tickets))
	for id, ticket := range tickets {
		raw, err := json.Marshal(ticket)
		if err != nil {
			return storageErr("encode", err)
		}
		encoded[id] = raw
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			if _, keep := tickets[id]; !keep {
				pipe.Del(ctx, s.key(id))
			}
		}
		pipe.Del(ctx, s.indexKey())
		for id, raw := range encoded {
			pipe.Set(ctx, s.key(id), raw, 0)
			pipe.SAdd(ctx, s.indexKey(), id)
		}
		return nil
	})
	return storageErr("save", err)
}

func (s *RedisTicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, storageErr("load", err)
	}
	return decodeTicket(raw)
}

func (s *RedisTicketStore) Create(ctx context.Context, id string, ticket *domain.Ticket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return storageErr("encode", err)
	}
	created, err := s.client.SetNX(ctx, s.key(id), raw, 0).Result()
	if err != nil {
		return storageErr("save", err)
	}
	if !created {
		return ticketExists(id)
	}
	return storageErr("save", s.client.SAdd(ctx, s.indexKey(), id).Err())
}

func (s *RedisTicketStore) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error) {
	key := s.key(id)
	var updated *domain.Ticket

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ticketNotFound(id)
		}
		if err != nil {
			return err
		}
		ticket, err := decodeTicket(raw)
		if err != nil {
			return err
		}
		if err := mutate(ticket); err != nil {
			return err
		}
		next, err := json.Marshal(ticket)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			updated = ticket
		}
		return err
	}

	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, storageErr("update", err)
	}
	return nil, storageErr("update", fmt.Errorf("ticket %s: too much contention after %d attempts", id, redisMaxTxRetries))
}

func (s *RedisTicketStore) Ping(ctx context.Context) error {
	return storageErr("ping", s.client.Ping(ctx).Err())
}

func decodeTicket(raw []byte) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, storageErr("decode", err)
	}
	if ticket.Steps == nil {
		ticket.Steps = []time.Time{}
	}
	return &ticket, nil
}
