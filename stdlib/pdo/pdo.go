// Package pdo registers a resource-typed host object exposing
// query/exec/fetch against database/sql, the way a thin PDO-style wrapper
// package abstracts Driver/Conn/Stmt/Rows behind a narrow interface —
// reduced here to the handful of host functions a script actually calls
// through OpCall, with the connection/result-set handles carried as
// values.Resource rather than exposing raw *sql.DB/*sql.Rows to scripts.
package pdo

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

const (
	kindConn = "pdo.conn"
	kindRows = "pdo.rows"
)

// connState is the Resource.Handle behind a kindConn resource: the open
// database plus the insert ID of its most recent pdo_exec, since
// database/sql surfaces LastInsertId per sql.Result rather than per
// connection.
type connState struct {
	db     *sql.DB
	lastID int64
}

// Register installs the pdo_* host functions into reg.
func Register(reg *registry.Registry) {
	reg.RegisterBuiltin("pdo_connect", builtinConnect)
	reg.RegisterBuiltin("pdo_exec", builtinExec)
	reg.RegisterBuiltin("pdo_query", builtinQuery)
	reg.RegisterBuiltin("pdo_fetch_assoc", builtinFetchAssoc)
	reg.RegisterBuiltin("pdo_close", builtinClose)
	reg.RegisterBuiltin("pdo_last_insert_id", builtinLastInsertID)
}

// driverName maps a PDO-style DSN scheme ("mysql:host=...",
// "sqlite:/path/to.db") to the registered database/sql driver name and
// the driver-specific connection string the *sql.DB expects.
func driverName(dsn string) (driver, conn string, err error) {
	scheme, rest, ok := strings.Cut(dsn, ":")
	if !ok {
		return "", "", fmt.Errorf("pdo_connect(): malformed dsn %q", dsn)
	}
	switch strings.ToLower(scheme) {
	case "mysql":
		return "mysql", rest, nil
	case "sqlite":
		return "sqlite", rest, nil
	default:
		return "", "", fmt.Errorf("pdo_connect(): unsupported driver %q", scheme)
	}
}

// builtinConnect implements `pdo_connect($dsn)`, returning a resource
// wrapping an open *sql.DB, or throwing (as a returned error, per this
// VM's convention of surfacing host errors as PHP exceptions) on
// failure to open or ping.
func builtinConnect(ctx *registry.CallContext) (*values.Value, error) {
	dsn := ctx.Arg(0).ToString()
	driver, conn, err := driverName(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("pdo_connect(): %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pdo_connect(): %w", err)
	}
	state := &connState{db: db}
	res := values.NewResource(kindConn, state)
	res.Res.Release = func() { db.Close() }
	return res, nil
}

func connFromArg(v *values.Value) (*connState, error) {
	if v.Type != values.TypeResource || v.Res.Kind != kindConn {
		return nil, fmt.Errorf("expected a pdo connection resource")
	}
	state, _ := v.Res.Handle.(*connState)
	if state == nil || state.db == nil {
		return nil, fmt.Errorf("pdo resource is closed")
	}
	return state, nil
}

// builtinExec implements `pdo_exec($conn, $sql)`, returning the number
// of affected rows and recording the statement's insert ID for a
// follow-up pdo_last_insert_id call.
func builtinExec(ctx *registry.CallContext) (*values.Value, error) {
	state, err := connFromArg(ctx.Arg(0))
	if err != nil {
		return nil, err
	}
	result, err := state.db.Exec(ctx.Arg(1).ToString())
	if err != nil {
		return nil, fmt.Errorf("pdo_exec(): %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if id, idErr := result.LastInsertId(); idErr == nil {
		state.lastID = id
	}
	return values.Int(n), nil
}

// builtinQuery implements `pdo_query($conn, $sql)`, returning a
// resource wrapping *sql.Rows for a follow-up pdo_fetch_assoc loop.
func builtinQuery(ctx *registry.CallContext) (*values.Value, error) {
	state, err := connFromArg(ctx.Arg(0))
	if err != nil {
		return nil, err
	}
	rows, err := state.db.Query(ctx.Arg(1).ToString())
	if err != nil {
		return nil, fmt.Errorf("pdo_query(): %w", err)
	}
	res := values.NewResource(kindRows, rows)
	res.Res.Release = func() { rows.Close() }
	return res, nil
}

// builtinFetchAssoc implements `pdo_fetch_assoc($rows)`, returning the
// next row as an associative array, or null once exhausted — mirroring
// an associative row.
func builtinFetchAssoc(ctx *registry.CallContext) (*values.Value, error) {
	v := ctx.Arg(0)
	if v.Type != values.TypeResource || v.Res.Kind != kindRows {
		return nil, fmt.Errorf("expected a pdo rows resource")
	}
	rows, _ := v.Res.Handle.(*sql.Rows)
	if rows == nil {
		return values.Null(), nil
	}
	if !rows.Next() {
		return values.Null(), rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	scanDest := make([]interface{}, len(cols))
	raw := make([]sql.RawBytes, len(cols))
	for i := range raw {
		scanDest[i] = &raw[i]
	}
	if err := rows.Scan(scanDest...); err != nil {
		return nil, err
	}
	out := ctx.Host.NewArray()
	for i, col := range cols {
		if raw[i] == nil {
			out.Arr.Set(values.NewKey(col), values.Null())
			continue
		}
		out.Arr.Set(values.NewKey(col), values.String(string(raw[i])))
	}
	return out, nil
}

// builtinClose implements `pdo_close($conn)`.
func builtinClose(ctx *registry.CallContext) (*values.Value, error) {
	v := ctx.Arg(0)
	if v.Type == values.TypeResource {
		v.Res.Release_()
	}
	return values.Null(), nil
}

// builtinLastInsertID implements `pdo_last_insert_id($conn)`, returning
// the insert ID recorded by the connection's most recent pdo_exec.
func builtinLastInsertID(ctx *registry.CallContext) (*values.Value, error) {
	state, err := connFromArg(ctx.Arg(0))
	if err != nil {
		return nil, err
	}
	return values.Int(state.lastID), nil
}
