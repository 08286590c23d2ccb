package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// FileTicketStore keeps every ticket in one JSON document on disk.
// A single mutex spans each load/mutate/save cycle; the store assumes it is
// the only writer of the file.
type FileTicketStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTicketStore opens path, creating an empty document when missing.
func NewFileTicketStore(path string) (*FileTicketStore, error) {
	s := &FileTicketStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, storageErr("init", err)
			}
		}
		if err := s.write(domain.TicketMap{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, storageErr("init", err)
	}
	return s, nil
}

func (s *FileTicketStore) Load(ctx context.Context) (domain.TicketMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileTicketStore) Save(ctx context.Context, tickets domain.TicketMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(tickets)
}

func (s *FileTicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets, err := s.read()
	if err != nil {
		return nil, err
	}
	ticket, ok := tickets[id]
	if !ok {
		return nil, ticketNotFound(id)
	}
	return ticket, nil
}

func (s *FileTicketStore) Create(ctx context.Context, id string, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := tickets[id]; ok {
		return ticketExists(id)
	}
	tickets[id] = ticket.Clone()
	return s.write(tickets)
}

func (s *FileTicketStore) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets, err := s.read()
	if err != nil {
		return nil, err
	}
	ticket, ok := tickets[id]
	if !ok {
		return nil, ticketNotFound(id)
	}
	if err := mutate(ticket); err != nil {
		return nil, err
	}
	if err := s.write(tickets); err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

// Ping checks the document is still readable.
func (s *FileTicketStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return err
}

func (s *FileTicketStore) read() (domain.TicketMap, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, storageErr("load", err)
	}
	tickets := domain.TicketMap{}
	if len(raw) == 0 {
		return tickets, nil
	}
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, storageErr("decode", err)
	}
	for id, ticket := range tickets {
		if ticket == nil {
			delete(tickets, id)
		}
	}
	return tickets, nil
}

// write replaces the document atomically via a temp file in the same directory.
func (s *FileTicketStore) write(tickets domain.TicketMap) error {
	if tickets == nil {
		tickets = domain.TicketMap{}
	}
	raw, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return storageErr("encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return storageErr("save", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return storageErr("save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageErr("save", err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("save", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return storageErr("save", err)
	}
	return nil
}
