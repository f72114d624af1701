// Package users stores users in PostgreSQL or MySQL and enriches them with
// data from the external service.
//
// The store issues plain database/sql calls; tracing comes from opening the
// *sql.DB through sqltrace:
//
//	db, err := sqltrace.Open("postgres", dsn, sqltrace.WithDBSystem("postgresql"))
//	store := users.NewStore(db, users.Postgres)
//	svc := users.NewService(store, externalService, logger)
package users
