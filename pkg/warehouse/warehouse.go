package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	dbsql "github.com/databricks/databricks-sql-go"
	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRunningWarehouse = errors.New("a running warehouse that you have access to is required to execute queries")

type Lister interface {
	ListWarehouses(ctx context.Context) ([]api.Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (api.Warehouse, error)
}

// PickRunning returns the first listed warehouse that is RUNNING when asked
// directly. Warehouses are never started on the caller's behalf.
func PickRunning(ctx context.Context, l Lister) (api.Warehouse, error) {
	list, err := l.ListWarehouses(ctx)
	if err != nil {
		return api.Warehouse{}, errors.Wrap(err, "list warehouses")
	}
	for _, w := range list {
		cur, err := l.GetWarehouse(ctx, w.ID)
		if err != nil {
			return api.Warehouse{}, errors.Wrapf(err, "get warehouse %s", w.ID)
		}
		log.Debug().Str("warehouse", cur.ID).Str("state", cur.State).Msg("warehouse candidate")
		if cur.IsRunning() {
			return cur, nil
		}
	}
	return api.Warehouse{}, ErrNoRunningWarehouse
}

// Open connects to the warehouse through its ODBC endpoint.
func Open(w api.Warehouse, token string) (*sql.DB, error) {
	if w.ODBCParams.Hostname == "" || w.ODBCParams.Path == "" {
		return nil, errors.Errorf("warehouse %s has no connection parameters", w.ID)
	}
	port := w.ODBCParams.Port
	if port == 0 {
		port = 443
	}
	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(w.ODBCParams.Hostname),
		dbsql.WithPort(port),
		dbsql.WithHTTPPath(w.ODBCParams.Path),
		dbsql.WithAccessToken(token),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to warehouse %s", w.ID)
	}
	return sql.OpenDB(connector), nil
}

type Result struct {
	Columns []string
	Rows    [][]string
}

// Query runs one statement and reads every row as text.
func Query(ctx context.Context, db *sql.DB, query string) (Result, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, errors.Wrap(err, "execute query")
	}
	defer func() {
		_ = rows.Close()
	}()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, errors.Wrap(err, "read columns")
	}
	res := Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return res, errors.Wrap(err, "read row")
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = text(v)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, errors.Wrap(rows.Err(), "read rows")
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Render draws the result as a bordered table followed by a row count.
func (r Result) Render() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(r.Columns...).
		Rows(r.Rows...)
	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "(%d rows)\n", len(r.Rows))
	return b.String()
}
