// Package provider compiles relational plans into SQL select statements
// for a backend described by dialect.Capabilities.
//
//	c := provider.New(dialect.PostgresCapabilities())
//	q, err := c.Compile(plan)
//	if err != nil {
//		return err
//	}
//	query, args, err := q.Render(ctx)
//
// Compilation walks the plan bottom-up. Each operator either extends the
// select of its input or, when the input cannot be extended (for example
// filtering an aggregated or paged input), turns it into a derived table.
// The result then passes through post-compilers that fix the projection,
// apply the required order and rewrite paging for backends without native
// LIMIT/OFFSET support.
//
// Execution-time values are never rendered into the statement at compile
// time. They are carried by sql.Binding values evaluated by Render, so a
// compiled query may be cached and rendered concurrently.
package provider
