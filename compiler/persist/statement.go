package persist

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema"
)

// Statement is one statement of a compiled persist task.
type Statement struct {
	// Table is the table written by the statement.
	Table *schema.Table
	Stmt  sql.Stmt
	// Bindings lists the bindings of Stmt in placeholder order.
	Bindings []*sql.Binding
	// ExpectedRows is the number of rows the statement must affect.
	ExpectedRows int64
}

// CompiledStatement is the SQL form of a persist task. It is immutable
// and reads entity values from the tuple set with WithTuple at render time.
type CompiledStatement struct {
	Key        TaskKey
	Statements []*Statement

	caps dialect.Capabilities
}

// Capabilities returns the capabilities the task was compiled for.
func (c *CompiledStatement) Capabilities() dialect.Capabilities { return c.caps }

// Template returns the statement texts, one per line.
func (c *CompiledStatement) Template() string {
	lines := make([]string, len(c.Statements))
	for i, s := range c.Statements {
		lines[i] = sql.Template(c.caps, s.Stmt)
	}
	return strings.Join(lines, "\n")
}

// Render renders one statement with the values of the tuple in ctx.
func (c *CompiledStatement) Render(ctx context.Context, s *Statement) (string, []any, error) {
	return sql.Render(ctx, c.caps, s.Stmt)
}

// RenderBatch renders the statements as one batch.
func (c *CompiledStatement) RenderBatch(ctx context.Context, batch []*Statement) (string, []any, error) {
	stmts := make([]sql.Stmt, len(batch))
	for i, s := range batch {
		stmts[i] = s.Stmt
	}
	return sql.RenderBatch(ctx, c.caps, stmts...)
}

// Batches groups the statements for execution. Without batch support
// every statement is its own batch.
func (c *CompiledStatement) Batches() [][]*Statement {
	size := 1
	if c.caps.Batches && c.caps.MaxBatchSize > 1 {
		size = c.caps.MaxBatchSize
	}
	var batches [][]*Statement
	for s := range slices.Chunk(c.Statements, size) {
		batches = append(batches, s)
	}
	return batches
}

// ExpectedRows returns the number of rows the batch must affect.
func ExpectedRows(batch []*Statement) int64 {
	var n int64
	for _, s := range batch {
		n += s.ExpectedRows
	}
	return n
}
