package sqlstore

import (
	"context"
	"database/sql"
	"sync"
)

type slotState int32

const (
	slotClosed slotState = iota
	slotOpen
	slotBusy
)

type slot struct {
	conn  *sql.Conn
	state slotState
}

// pool is a free-list of *sql.Conn layered over database/sql's own
// connection multiplexing: getHandle reuses an OPEN slot if one is
// idle, else opens fresh connections, growing the pool by 2 at a
// time, and marks the slot it hands out BUSY until release puts it
// back to OPEN. The actual dialing, health-checking and blocking
// under contention is still all database/sql's.
type pool struct {
	db *sql.DB

	mu    sync.Mutex
	slots []*slot
}

func newPool(db *sql.DB) *pool {
	return &pool{db: db}
}

// getHandle returns a connection and a release func the caller must
// invoke when done with it.
func (p *pool) getHandle(ctx context.Context) (*sql.Conn, func(), error) {
	p.mu.Lock()
	for _, s := range p.slots {
		if s.state == slotOpen {
			s.state = slotBusy
			p.mu.Unlock()
			return s.conn, func() { p.release(s) }, nil
		}
	}
	grow := 2
	p.mu.Unlock()

	var chosen *slot
	for i := 0; i < grow; i++ {
		c, err := p.db.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		s := &slot{conn: c, state: slotOpen}
		p.mu.Lock()
		p.slots = append(p.slots, s)
		p.mu.Unlock()
		if i == 0 {
			chosen = s
		}
	}
	p.mu.Lock()
	chosen.state = slotBusy
	p.mu.Unlock()
	return chosen.conn, func() { p.release(chosen) }, nil
}

func (p *pool) release(s *slot) {
	p.mu.Lock()
	s.state = slotOpen
	p.mu.Unlock()
}

func (p *pool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, s := range p.slots {
		if err := s.conn.Close(); err != nil && first == nil {
			first = err
		}
		s.state = slotClosed
	}
	p.slots = nil
	return first
}
