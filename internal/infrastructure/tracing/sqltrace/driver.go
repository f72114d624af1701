package sqltrace

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// Span names
const (
	SpanQuery   = "db.query"
	SpanExec    = "db.exec"
	SpanExecute = "db.statement.execute"
)

// Attribute keys
const (
	OperationKey    = "db.operation"
	StatementKey    = "db.statement"
	ParamsKey       = "db.statement.params"
	RowsAffectedKey = "db.rows_affected"
	SystemKey       = "db.system"
)

// db.operation values
const (
	OpQuery   = "QUERY"
	OpExec    = "EXEC"
	OpExecute = "EXECUTE"
)

// Option configures the decorator
type Option func(*config)

type config struct {
	tracer *tracing.Tracer
	system string
	logger *zap.Logger
}

// WithTracer sets the tracer; the process default is used otherwise
func WithTracer(t *tracing.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// WithDBSystem tags every span with db.system (postgresql, mysql, ...)
func WithDBSystem(system string) Option {
	return func(c *config) { c.system = system }
}

// WithLogger sets the logger for instrumentation failures
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) tracerFor() *tracing.Tracer {
	if c.tracer != nil {
		return c.tracer
	}
	return tracing.Default()
}

// tracedDriver decorates a driver.Driver. Connections it opens are traced.
type tracedDriver struct {
	parent driver.Driver
	cfg    *config
}

var (
	_ driver.Driver        = (*tracedDriver)(nil)
	_ driver.DriverContext = (*tracedDriver)(nil)
)

// Wrap returns a driver whose connections produce a span for every query,
// exec and prepared statement execution.
func Wrap(d driver.Driver, opts ...Option) driver.Driver {
	return &tracedDriver{parent: d, cfg: newConfig(opts)}
}

func (d *tracedDriver) Open(name string) (driver.Conn, error) {
	c, err := d.parent.Open(name)
	if err != nil {
		return nil, err
	}
	return &conn{parent: c, cfg: d.cfg}, nil
}

func (d *tracedDriver) OpenConnector(name string) (driver.Connector, error) {
	if dc, ok := d.parent.(driver.DriverContext); ok {
		parent, err := dc.OpenConnector(name)
		if err != nil {
			return nil, err
		}
		return &connector{parent: parent, drv: d}, nil
	}
	return &connector{parent: dsnConnector{dsn: name, drv: d.parent}, drv: d}, nil
}

// connector wraps a driver.Connector so sql.OpenDB hands out traced conns
type connector struct {
	parent driver.Connector
	drv    *tracedDriver
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	raw, err := c.parent.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{parent: raw, cfg: c.drv.cfg}, nil
}

func (c *connector) Driver() driver.Driver { return c.drv }

// dsnConnector adapts drivers without DriverContext
type dsnConnector struct {
	dsn string
	drv driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.dsn) }

func (c dsnConnector) Driver() driver.Driver { return c.drv }

// OpenDB opens a database whose connections come from a traced connector
func OpenDB(c driver.Connector, opts ...Option) *sql.DB {
	d := &tracedDriver{parent: c.Driver(), cfg: newConfig(opts)}
	return sql.OpenDB(&connector{parent: c, drv: d})
}

// Open opens a traced database for a registered driver name
func Open(driverName, dsn string, opts ...Option) (*sql.DB, error) {
	// sql.Open only resolves the driver; it does not connect.
	resolved, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	raw := resolved.Driver()
	_ = resolved.Close()

	td := &tracedDriver{parent: raw, cfg: newConfig(opts)}
	c, err := td.OpenConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connector: %w", driverName, err)
	}
	return sql.OpenDB(c), nil
}
