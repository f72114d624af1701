/*
Package sqltrace decorates a database/sql driver so every statement the
application runs becomes a span.

The decorator has three levels: the driver (or connector) opens traced
connections, connections prepare traced statements. Spans are INTERNAL
children of the span in the statement's context:

	db.query              ad-hoc QueryContext          db.operation=QUERY
	db.exec               ad-hoc ExecContext           db.operation=EXEC
	db.statement.execute  prepared statement Exec/Query db.operation=EXECUTE

Each carries db.statement and, when arguments are bound,
db.statement.params as JSON. Successful execs add db.rows_affected.
A failing statement ends its span with status ERROR and the driver error is
returned to the caller unchanged.

Preparing a statement, transactions, pings and session resets pass through
without spans.

Usage:

	db, err := sqltrace.Open("postgres", dsn,
		sqltrace.WithTracer(tracer),
		sqltrace.WithDBSystem("postgresql"),
	)

	rows, err := db.QueryContext(ctx, "SELECT id, name FROM users")
*/
package sqltrace
