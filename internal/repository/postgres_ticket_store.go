package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const ticketColumns = `channel_id, owner_id, created_at, closed_at, status, priority, assigned_to, steps, channel_deleted_at`

// PostgresTicketStore keeps one row per ticket. Update locks the row with
// SELECT ... FOR UPDATE for the duration of the mutation.
type PostgresTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore instantiates the store.
func NewPostgresTicketStore(pool *pgxpool.Pool) *PostgresTicketStore {
	return &PostgresTicketStore{pool: pool}
}

func (s *PostgresTicketStore) Load(ctx context.Context) (domain.TicketMap, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at`)
	if err != nil {
		return nil, storageErr("load", err)
	}
	defer rows.Close()

	tickets := domain.TicketMap{}
	for rows.Next() {
		id, ticket, err := scanTicket(rows)
		if err != nil {
			return nil, storageErr("load", err)
		}
		tickets[id] = ticket
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load", err)
	}
	return tickets, nil
}

// Save replaces the table contents with tickets in one transaction.
func (s *PostgresTicketStore) Save(ctx context.Context, tickets domain.TicketMap) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("save", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := tickets.IDs()
	if _, err := tx.Exec(ctx, `DELETE FROM tickets WHERE NOT (channel_id = ANY($1))`, ids); err != nil {
		return storageErr("save", err)
	}
	const upsert = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (channel_id) DO UPDATE SET
            owner_id=EXCLUDED.owner_id, created_at=EXCLUDED.created_at, closed_at=EXCLUDED.closed_at,
            status=EXCLUDED.status, priority=EXCLUDED.priority, assigned_to=EXCLUDED.assigned_to,
            steps=EXCLUDED.steps, channel_deleted_at=EXCLUDED.channel_deleted_at`
	for _, id := range ids {
		if _, err := tx.Exec(ctx, upsert, ticketArgs(id, tickets[id])...); err != nil {
			return storageErr("save", err)
		}
	}
	return storageErr("save", tx.Commit(ctx))
}

func (s *PostgresTicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_id=$1`, id)
	_, ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, storageErr("load", err)
	}
	return ticket, nil
}

func (s *PostgresTicketStore) Create(ctx context.Context, id string, ticket *domain.Ticket) error {
	const query = `INSERT INTO tickets (` + ticketColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (channel_id) DO NOTHING`
	cmd, err := s.pool.Exec(ctx, query, ticketArgs(id, ticket)...)
	if err != nil {
		return storageErr("save", err)
	}
	if cmd.RowsAffected() == 0 {
		return ticketExists(id)
	}
	return nil
}

func (s *PostgresTicketStore) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("update", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_id=$1 FOR UPDATE`, id)
	_, ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, storageErr("update", err)
	}

	if err := mutate(ticket); err != nil {
		return nil, err
	}

	const query = `
        UPDATE tickets SET closed_at=$2, status=$3, priority=$4, assigned_to=$5, steps=$6, channel_deleted_at=$7
        WHERE channel_id=$1`
	if _, err := tx.Exec(ctx, query,
		id,
		ticket.ClosedAt,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.Steps,
		ticket.ChannelDeletedAt,
	); err != nil {
		return nil, storageErr("update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("update", err)
	}
	return ticket, nil
}

func (s *PostgresTicketStore) Ping(ctx context.Context) error {
	return storageErr("ping", s.pool.Ping(ctx))
}

func ticketArgs(id string, ticket *domain.Ticket) []any {
	steps := ticket.Steps
	if steps == nil {
		steps = []time.Time{}
	}
	return []any{
		id,
		ticket.OwnerID,
		ticket.CreatedAt,
		ticket.ClosedAt,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		steps,
		ticket.ChannelDeletedAt,
	}
}

func scanTicket(row pgx.Row) (string, *domain.Ticket, error) {
	var (
		id     string
		ticket domain.Ticket
	)
	if err := row.Scan(
		&id,
		&ticket.OwnerID,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.Steps,
		&ticket.ChannelDeletedAt,
	); err != nil {
		return "", nil, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	for i := range ticket.Steps {
		ticket.Steps[i] = ticket.Steps[i].UTC()
	}
	if ticket.Steps == nil {
		ticket.Steps = []time.Time{}
	}
	return id, &ticket, nil
}
