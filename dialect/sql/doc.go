// Package sql provides the native SQL tree produced by the relcomp compilers,
// the parameter binding abstraction shared by the read and write paths, and
// the renderer that turns trees into text and arguments for one backend.
//
// # Trees
//
// Expressions (ColumnRef, Param, Literal, Binary, Func, ...), sources
// (TableRef, Subquery, JoinSource) and statements (Select, Insert, Update,
// Delete) form closed sets. Compilers never mutate a Select they did not
// create; they call Clone first:
//
//	s := child.Clone()
//	s.Where = sql.And(s.Where, sql.GT(sql.C("t0", "age"), sql.P(b)))
//
// # Bindings
//
// A Binding pairs a placeholder with a ValueSource, evaluated once per
// execution. The binding kind decides how the placeholder is rendered:
//
//	sql.KindRegular          // ?
//	sql.KindSmartNull        // x = ?, or x IS NULL when the value is nil
//	sql.KindBooleanConstant  // 1 = 1 or 1 = 0
//	sql.KindLimitOffset      // clamped row count, optionally inline
//	sql.KindLargeObject      // streamed by the execution layer
//
// # Rendering
//
//	query, args, err := sql.Render(ctx, caps, stmt) // evaluates bindings
//	text := sql.Template(caps, stmt)               // placeholders only
//
// # Drivers
//
// Driver adapts database/sql to dialect.Driver; StatsDriver and DebugDriver
// record and log executions.
package sql
