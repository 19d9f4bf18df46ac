package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/stream"
)

// Begin pins a single *sql.Tx on b; every subsequent Add/Remove/Find
// call runs against it until Commit or Rollback. Starting a second
// transaction before the first ends is an error.
func (b *Backend) Begin(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		return fmt.Errorf("sqlstore: transaction already open")
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b.tx = tx
	return nil
}

// Commit commits the pinned transaction.
func (b *Backend) Commit(ctx context.Context) error {
	b.mu.Lock()
	tx := b.tx
	b.tx = nil
	b.mu.Unlock()
	if tx == nil {
		return fmt.Errorf("sqlstore: no open transaction")
	}
	return tx.Commit()
}

// Rollback rolls back the pinned transaction.
func (b *Backend) Rollback(ctx context.Context) error {
	b.mu.Lock()
	tx := b.tx
	b.tx = nil
	b.mu.Unlock()
	if tx == nil {
		return fmt.Errorf("sqlstore: no open transaction")
	}
	return tx.Rollback()
}

// AddMany wraps the whole stream in one transaction when none is
// already pinned, so a bulk import costs one commit instead of one
// per quad.
func (b *Backend) AddMany(ctx context.Context, s stream.Stream) error {
	b.mu.Lock()
	owned := b.tx == nil
	b.mu.Unlock()

	if owned {
		if err := b.Begin(ctx); err != nil {
			return err
		}
	}
	for s.Next(ctx) {
		if err := b.Add(ctx, rdf.Quad{Triple: s.Triple(), Context: s.Context()}); err != nil {
			if owned {
				b.Rollback(ctx)
			}
			return err
		}
	}
	if err := s.Err(); err != nil {
		if owned {
			b.Rollback(ctx)
		}
		return err
	}
	if owned {
		return b.Commit(ctx)
	}
	return nil
}

// ContextAdd inserts t tagged with context c.
func (b *Backend) ContextAdd(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	return b.Add(ctx, rdf.Quad{Triple: t, Context: c})
}

// ContextRemove deletes t tagged with context c.
func (b *Backend) ContextRemove(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	return b.Remove(ctx, rdf.Quad{Triple: t, Context: c})
}

// ContextRemoveAll deletes every statement tagged with context c, in
// a single DELETE.
func (b *Backend) ContextRemoveAll(ctx context.Context, c rdf.Node) error {
	cid, ok, err := b.findNodeID(ctx, c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	h, release, err := b.handle(ctx)
	if err != nil {
		return err
	}
	defer release()
	q := fmt.Sprintf("DELETE FROM %s WHERE context = %s", b.table, b.dialect.Placeholder(1))
	_, err = h.ExecContext(ctx, q, int64(cid))
	return err
}

// ContextSerialize streams every statement tagged with context c.
func (b *Backend) ContextSerialize(ctx context.Context, c rdf.Node) (stream.Stream, error) {
	return b.FindInContext(ctx, rdf.Triple{}, c)
}

// FindInContext streams every statement matching pattern within
// context c.
func (b *Backend) FindInContext(ctx context.Context, pattern rdf.Triple, c rdf.Node) (stream.Stream, error) {
	cid, ok, err := b.findNodeID(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return stream.NewSliceStream(nil), nil
	}

	bound := []struct {
		col  string
		node rdf.Node
	}{
		{"subject", pattern.Subj},
		{"predicate", pattern.Pred},
		{"object", pattern.Obj},
	}
	conds := []string{fmt.Sprintf("t.context = %s", b.dialect.Placeholder(1))}
	args := []interface{}{int64(cid)}
	n := 2
	for _, bc := range bound {
		if bc.node == nil {
			continue
		}
		id, ok, err := b.findNodeID(ctx, bc.node)
		if err != nil {
			return nil, err
		}
		if !ok {
			return stream.NewSliceStream(nil), nil
		}
		conds = append(conds, fmt.Sprintf("t.%s = %s", bc.col, b.dialect.Placeholder(n)))
		args = append(args, int64(id))
		n++
	}
	return b.queryWithArgs(ctx, conds, args)
}

func (b *Backend) queryWithArgs(ctx context.Context, conds []string, args []interface{}) (stream.Stream, error) {
	h, release, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	q := b.joinedSelect(strings.Join(conds, " AND "))
	rows, err := h.QueryContext(ctx, q, args...)
	if err != nil {
		release()
		return nil, err
	}
	return newRowsStream(rows, release), nil
}
