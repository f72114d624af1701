package sqltrace

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
)

// stmt traces executions of a prepared statement
type stmt struct {
	parent driver.Stmt
	conn   *conn
	query  string
}

var (
	_ driver.Stmt              = (*stmt)(nil)
	_ driver.StmtExecContext   = (*stmt)(nil)
	_ driver.StmtQueryContext  = (*stmt)(nil)
	_ driver.NamedValueChecker = (*stmt)(nil)
)

func (s *stmt) Close() error { return s.parent.Close() }

func (s *stmt) NumInput() int { return s.parent.NumInput() }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), toNamed(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), toNamed(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	cfg := s.conn.cfg
	span, ctx := cfg.start(ctx, SpanExecute, OpExecute, s.query, args)

	var (
		res driver.Result
		err error
	)
	if ec, ok := s.parent.(driver.StmtExecContext); ok {
		res, err = ec.ExecContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = toValues(args); err == nil {
			res, err = s.parent.Exec(values) //nolint:staticcheck
		}
	}

	if err == nil {
		setRowsAffected(span, res)
	}
	cfg.finish(span, err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	cfg := s.conn.cfg
	span, ctx := cfg.start(ctx, SpanExecute, OpExecute, s.query, args)

	var (
		rows driver.Rows
		err  error
	)
	if qc, ok := s.parent.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = toValues(args); err == nil {
			rows, err = s.parent.Query(values) //nolint:staticcheck
		}
	}

	cfg.finish(span, err)
	return rows, err
}

// CheckNamedValue defers to the statement, then the connection, then a
// ColumnConverter on the statement. database/sql never consults any of
// them once the wrapper implements the interface.
func (s *stmt) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := s.parent.(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	if err := s.conn.CheckNamedValue(nv); err != driver.ErrSkip {
		return err
	}
	if cc, ok := s.parent.(driver.ColumnConverter); ok { //nolint:staticcheck
		return convertColumn(cc, s.parent.NumInput(), nv)
	}
	return driver.ErrSkip
}

// convertColumn applies the statement's converter for the argument's
// column. Arguments beyond a known input count use the default conversion.
func convertColumn(cc driver.ColumnConverter, numInput int, nv *driver.NamedValue) error { //nolint:staticcheck
	idx := nv.Ordinal - 1
	if idx < 0 || (numInput >= 0 && idx >= numInput) {
		return driver.ErrSkip
	}

	v := nv.Value
	if vr, ok := v.(driver.Valuer); ok {
		var err error
		if v, err = vr.Value(); err != nil {
			return err
		}
	}
	converted, err := cc.ColumnConverter(idx).ConvertValue(v)
	if err != nil {
		return err
	}
	if !driver.IsValue(converted) {
		return fmt.Errorf("sqltrace: column converter returned unsupported type %T", converted)
	}
	nv.Value = converted
	return nil
}

var errNamedArgs = errors.New("sqltrace: driver does not support named arguments")

func toValues(args []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, errNamedArgs
		}
		values[i] = a.Value
	}
	return values, nil
}

func toNamed(values []driver.Value) []driver.NamedValue {
	args := make([]driver.NamedValue, len(values))
	for i, v := range values {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return args
}
