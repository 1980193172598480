// Package relcomp is the relational compilation layer of an object store.
//
// It turns backend-neutral relational operator trees (package rel) into
// native SQL for one backend, described by a dialect.Capabilities value,
// and turns persist tasks over mapped types (package schema) into
// parameterized INSERT, UPDATE and DELETE statements:
//
//	caps := dialect.PostgresCapabilities()
//	q, err := provider.New(caps).Compile(plan)
//	if err != nil {
//		return err
//	}
//	query, args, err := q.Render(rel.WithParams(ctx, params))
//
// Compiled results are immutable and shared through a RequestCache keyed
// by the structure of the request. The root package holds the error
// taxonomy shared by the compilers and the execution helpers in
// dialect/sql/sqlgraph.
package relcomp
