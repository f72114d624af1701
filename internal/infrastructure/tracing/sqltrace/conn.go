package sqltrace

import (
	"context"
	"database/sql/driver"
	"errors"
	"strconv"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// conn traces ad-hoc queries and execs. Everything else passes through to
// the parent connection.
type conn struct {
	parent driver.Conn
	cfg    *config
}

var (
	_ driver.Conn               = (*conn)(nil)
	_ driver.QueryerContext     = (*conn)(nil)
	_ driver.ExecerContext      = (*conn)(nil)
	_ driver.ConnPrepareContext = (*conn)(nil)
	_ driver.ConnBeginTx        = (*conn)(nil)
	_ driver.Pinger             = (*conn)(nil)
	_ driver.SessionResetter    = (*conn)(nil)
	_ driver.Validator          = (*conn)(nil)
	_ driver.NamedValueChecker  = (*conn)(nil)
)

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := c.parent.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	span, ctx := c.cfg.start(ctx, SpanQuery, OpQuery, query, args)
	rows, err := q.QueryContext(ctx, query, args)
	if errors.Is(err, driver.ErrSkip) {
		// database/sql retries through Prepare; that execution is traced.
		span.Discard()
		return nil, err
	}
	c.cfg.finish(span, err)
	return rows, err
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	e, ok := c.parent.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	span, ctx := c.cfg.start(ctx, SpanExec, OpExec, query, args)
	res, err := e.ExecContext(ctx, query, args)
	if errors.Is(err, driver.ErrSkip) {
		span.Discard()
		return nil, err
	}
	if err == nil {
		setRowsAffected(span, res)
	}
	c.cfg.finish(span, err)
	return res, err
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		st  driver.Stmt
		err error
	)
	if pc, ok := c.parent.(driver.ConnPrepareContext); ok {
		st, err = pc.PrepareContext(ctx, query)
	} else {
		st, err = c.parent.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &stmt{parent: st, conn: c, query: query}, nil
}

func (c *conn) Close() error { return c.parent.Close() }

// Begin is deprecated in database/sql/driver but required by driver.Conn
func (c *conn) Begin() (driver.Tx, error) {
	return c.parent.Begin() //nolint:staticcheck
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.parent.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	if opts.ReadOnly || opts.Isolation != 0 {
		return nil, errors.New("sqltrace: driver does not support transaction options")
	}
	return c.parent.Begin() //nolint:staticcheck
}

func (c *conn) Ping(ctx context.Context) error {
	if p, ok := c.parent.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *conn) ResetSession(ctx context.Context) error {
	if r, ok := c.parent.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *conn) IsValid() bool {
	if v, ok := c.parent.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := c.parent.(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

// start opens an INTERNAL span for one statement as a child of ctx
func (c *config) start(ctx context.Context, name, op, query string, args []driver.NamedValue) (*tracing.Span, context.Context) {
	attrs := []tracing.Attribute{
		tracing.String(OperationKey, op),
		tracing.String(StatementKey, query),
	}
	if c.system != "" {
		attrs = append(attrs, tracing.String(SystemKey, c.system))
	}

	span, ctx := c.tracerFor().StartSpan(ctx, name,
		tracing.WithKind(tracing.KindInternal),
		tracing.WithAttributes(attrs...),
	)
	if len(args) > 0 {
		if params, err := encodeParams(args); err == nil {
			span.SetAttribute(ParamsKey, params)
		} else {
			c.logger.Warn("encode statement params",
				append(tracing.LogFields(ctx), zap.Error(err))...)
		}
	}
	return span, ctx
}

// finish records the outcome and ends the span. The statement error itself
// is returned to the caller untouched.
func (c *config) finish(span *tracing.Span, err error) {
	if err != nil {
		span.Fail(err)
	} else {
		span.SetStatus(tracing.StatusOK, "")
	}
	span.End()
}

func setRowsAffected(span *tracing.Span, res driver.Result) {
	if res == nil {
		return
	}
	if n, err := res.RowsAffected(); err == nil {
		span.SetAttribute(RowsAffectedKey, n)
	}
}

// encodeParams renders bound values as a JSON array, or a JSON object when
// the arguments are named.
func encodeParams(args []driver.NamedValue) (string, error) {
	named := false
	for _, a := range args {
		if a.Name != "" {
			named = true
			break
		}
	}

	if named {
		m := make(map[string]any, len(args))
		for _, a := range args {
			key := a.Name
			if key == "" {
				key = "$" + strconv.Itoa(a.Ordinal)
			}
			m[key] = paramValue(a.Value)
		}
		return sonic.MarshalString(m)
	}

	values := make([]any, len(args))
	for i, a := range args {
		values[i] = paramValue(a.Value)
	}
	return sonic.MarshalString(values)
}

func paramValue(v driver.Value) any {
	// Raw bytes are shown as text rather than base64.
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
