package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/sqltrace"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// dbSystems maps driver names to the db.system span attribute
var dbSystems = map[string]string{
	config.DriverPostgres: "postgresql",
	config.DriverMySQL:    "mysql",
}

// OpenDatabase opens the users database through the query tracer and
// applies the pool settings. The connection is verified with a ping.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, tracer *tracing.Tracer, logger *zap.Logger) (*sql.DB, error) {
	system, ok := dbSystems[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqltrace.Open(cfg.Driver, cfg.DSN,
		sqltrace.WithTracer(tracer),
		sqltrace.WithDBSystem(system),
		sqltrace.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
