package sqlgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/compiler/provider"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
)

// QueryRows runs the prerequisites of the query and then the query
// itself, returning one value slice per row in header order.
func QueryRows(ctx context.Context, drv dialect.ExecQuerier, q *provider.CompiledQuery) ([][]any, error) {
	for _, s := range q.Prerequisites {
		query, args, err := q.RenderStmt(ctx, s)
		if err != nil {
			return nil, err
		}
		if err := drv.Exec(ctx, query, args, nil); err != nil {
			return nil, wrapConstraint(err)
		}
	}
	query, args, err := q.Render(ctx)
	if err != nil {
		return nil, err
	}
	rows := &sql.Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	values, err := sql.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 && len(values[0]) != q.Header.Len() {
		return nil, relcomp.NewInvariantError("", "query returned %d columns for a header of %d", len(values[0]), q.Header.Len())
	}
	return values, nil
}

// ExecPersist executes the statements of a compiled persist task with the
// values of the tuple. Every batch must affect exactly the expected number
// of rows, otherwise a *relcomp.ConcurrencyError is returned. Callers
// that need atomicity pass a transaction.
func ExecPersist(ctx context.Context, drv dialect.ExecQuerier, cs *persist.CompiledStatement, t persist.Tuple) error {
	ctx = persist.WithTuple(ctx, t)
	for _, batch := range cs.Batches() {
		var (
			query string
			args  []any
			err   error
		)
		if len(batch) == 1 {
			query, args, err = cs.Render(ctx, batch[0])
		} else {
			query, args, err = cs.RenderBatch(ctx, batch)
		}
		if err != nil {
			return err
		}
		var res sql.Result
		if err := drv.Exec(ctx, query, args, &res); err != nil {
			return wrapConstraint(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("relcomp: rows affected: %w", err)
		}
		if expected := persist.ExpectedRows(batch); affected != expected {
			return relcomp.NewConcurrencyError(tables(batch), expected, affected)
		}
	}
	return nil
}

func tables(batch []*persist.Statement) string {
	names := make([]string, len(batch))
	for i, s := range batch {
		names[i] = s.Table.String()
	}
	return strings.Join(names, ", ")
}

// NextKey runs the key generator and returns the generated key. Generators
// with several statements run in a transaction, so the identity is read
// on the connection that produced it.
func NextKey(ctx context.Context, drv dialect.Driver, g *persist.KeyGenerator) (_ int64, err error) {
	if len(g.Statements) == 0 {
		return 0, fmt.Errorf("relcomp: key generator %q has no statements", g.Name)
	}
	var eq dialect.ExecQuerier = drv
	if len(g.Statements) > 1 {
		tx, txErr := drv.Tx(ctx)
		if txErr != nil {
			return 0, txErr
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
				return
			}
			err = tx.Commit()
		}()
		eq = tx
	}
	caps := g.Capabilities()
	last := len(g.Statements) - 1
	for _, s := range g.Statements[:last] {
		query, args, err := sql.Render(ctx, caps, s)
		if err != nil {
			return 0, err
		}
		if err := eq.Exec(ctx, query, args, nil); err != nil {
			return 0, err
		}
	}
	query, args, err := sql.Render(ctx, caps, g.Statements[last])
	if err != nil {
		return 0, err
	}
	rows := &sql.Rows{}
	if err := eq.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	values, err := sql.ScanRows(rows)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 || len(values[0]) != 1 {
		return 0, fmt.Errorf("relcomp: key generator %q returned %d rows", g.Name, len(values))
	}
	return sql.ToInt64(values[0][0])
}
