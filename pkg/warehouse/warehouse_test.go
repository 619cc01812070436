package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"testing"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	list []api.Warehouse
	// current overrides the listed state, as the get call sees it
	current map[string]string
	gets    []string
}

func (f *fakeLister) ListWarehouses(context.Context) ([]api.Warehouse, error) {
	return f.list, nil
}

func (f *fakeLister) GetWarehouse(_ context.Context, id string) (api.Warehouse, error) {
	f.gets = append(f.gets, id)
	for _, w := range f.list {
		if w.ID == id {
			if st, ok := f.current[id]; ok {
				w.State = st
			}
			return w, nil
		}
	}
	return api.Warehouse{}, errors.New("missing")
}

func TestPickRunning_FirstRunningWins(t *testing.T) {
	l := &fakeLister{
		list: []api.Warehouse{
			{ID: "a", State: "STOPPED"},
			{ID: "b", State: "STOPPED", ODBCParams: api.ODBCParams{Hostname: "h", Path: "/sql/1.0/warehouses/b"}},
			{ID: "c", State: "RUNNING"},
		},
		current: map[string]string{"b": "RUNNING"},
	}
	w, err := PickRunning(context.Background(), l)
	require.NoError(t, err)
	require.Equal(t, "b", w.ID)
	require.Equal(t, "/sql/1.0/warehouses/b", w.ODBCParams.Path)
	require.Equal(t, []string{"a", "b"}, l.gets)
}

func TestPickRunning_NoneRunning(t *testing.T) {
	l := &fakeLister{list: []api.Warehouse{{ID: "a", State: "STARTING"}}}
	_, err := PickRunning(context.Background(), l)
	require.ErrorIs(t, err, ErrNoRunningWarehouse)
}

func TestOpen_RequiresConnectionParameters(t *testing.T) {
	_, err := Open(api.Warehouse{ID: "a", State: "RUNNING"}, "token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no connection parameters")
}

// staticDriver answers every query with the same rows.
type staticDriver struct {
	cols []string
	rows [][]driver.Value
}

type staticConn struct{ d *staticDriver }
type staticStmt struct{ d *staticDriver }
type staticRows struct {
	d   *staticDriver
	pos int
}

func (d *staticDriver) Open(string) (driver.Conn, error) { return staticConn{d: d}, nil }

func (c staticConn) Prepare(string) (driver.Stmt, error) { return staticStmt(c), nil }
func (staticConn) Close() error                          { return nil }
func (staticConn) Begin() (driver.Tx, error)             { return nil, errors.New("no transactions") }

func (staticStmt) Close() error                                { return nil }
func (staticStmt) NumInput() int                               { return -1 }
func (staticStmt) Exec([]driver.Value) (driver.Result, error)  { return nil, errors.New("read only") }
func (s staticStmt) Query([]driver.Value) (driver.Rows, error) { return &staticRows{d: s.d}, nil }

func (r *staticRows) Columns() []string { return r.d.cols }
func (r *staticRows) Close() error      { return nil }
func (r *staticRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.d.rows) {
		return io.EOF
	}
	copy(dest, r.d.rows[r.pos])
	r.pos++
	return nil
}

func init() {
	sql.Register("dltctl-static", &staticDriver{
		cols: []string{"id", "name", "score"},
		rows: [][]driver.Value{
			{int64(1), []byte("bronze"), 0.5},
			{int64(2), "silver", nil},
		},
	})
}

func TestQuery_ReadsRowsAsText(t *testing.T) {
	db, err := sql.Open("dltctl-static", "")
	require.NoError(t, err)
	defer db.Close()

	res, err := Query(context.Background(), db, "SELECT * FROM silver")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "score"}, res.Columns)
	require.Equal(t, [][]string{{"1", "bronze", "0.5"}, {"2", "silver", "NULL"}}, res.Rows)

	out := res.Render()
	require.Contains(t, out, "bronze")
	require.Contains(t, out, "score")
	require.Contains(t, out, "(2 rows)")
}
