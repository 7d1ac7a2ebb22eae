package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryAnalysisRepositoryPersistsAcrossReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryAnalysisRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		record := &AnalysisRecord{
			Query:     fmt.Sprintf("question-%d", i),
			Dataset:   "sales",
			Code:      "result = 1",
			Output:    "1",
			Observes:  "ok",
			CreatedAt: now + int64(i),
			UpdatedAt: now + int64(i),
		}
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	reloaded, err := NewMemoryAnalysisRepository(dir)
	if err != nil {
		t.Fatalf("failed to reload memory repo: %v", err)
	}
	list, err := reloaded.ListLatest(ctx, 10)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records after reload, got %d", len(list))
	}
	if list[0].Query != "question-2" {
		t.Fatalf("records not sorted newest first: %+v", list)
	}
	if list[0].Dataset != "sales" || list[0].Output != "1" {
		t.Fatalf("record did not round-trip: %+v", list[0])
	}
}

func TestMemoryAnalysisRepositoryListLatestLimit(t *testing.T) {
	t.Parallel()

	repo, err := NewMemoryAnalysisRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		record := &AnalysisRecord{Query: fmt.Sprintf("q-%d", i), CreatedAt: int64(i), UpdatedAt: int64(i)}
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	list, err := repo.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].Query != "q-4" {
		t.Fatalf("unexpected limited list: %+v", list)
	}

	all, err := repo.ListLatest(ctx, 0)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected all 5 records, got %d", len(all))
	}
}

func TestSQLAnalysisRepositoryCreate(t *testing.T) {
	t.Parallel()

	db, drv := newScriptedDB(t, []scriptedOp{
		execOp(insertAnalysisSQL(), scriptedResult{lastInsertID: 42, rowsAffected: 1}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLAnalysisRepository{db: db}
	record := &AnalysisRecord{Query: "q", Dataset: "sales", Code: "result = 1", Output: "1", CreatedAt: 1, UpdatedAt: 1}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if record.ID != 42 {
		t.Fatalf("expected id 42, got %d", record.ID)
	}
}

func TestSQLAnalysisRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := scriptedRowsData{
		columns: []string{"id", "query", "dataset", "code", "output", "observes", "created_at", "updated_at"},
		values: [][]driver.Value{
			{int64(2), "q2", "sales", "c2", "o2", "", int64(20), int64(20)},
			{int64(1), "q1", "sales", "c1", "o1", "", int64(10), int64(10)},
		},
	}

	db, drv := newScriptedDB(t, []scriptedOp{
		queryOp(`SELECT id, query, dataset, code, output, observes, created_at, updated_at
        FROM analyses ORDER BY id DESC LIMIT ?`, rows),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLAnalysisRepository{db: db}
	list, err := repo.ListLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].Query != "q1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestRunMigrationsAppliesPendingFiles(t *testing.T) {
	t.Parallel()

	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migration files failed: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i-1].version >= files[i].version {
			t.Fatalf("migrations not sorted by version: %s >= %s", files[i-1].version, files[i].version)
		}
	}

	ops := []scriptedOp{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, scriptedResult{}),
		queryOp(`SELECT version FROM schema_migrations`, scriptedRowsData{columns: []string{"version"}}),
	}
	for _, file := range files {
		ops = append(ops, beginOp())
		for _, stmt := range file.statements {
			ops = append(ops, execOp(stmt, scriptedResult{}))
		}
		ops = append(ops, execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, scriptedResult{rowsAffected: 1}))
		ops = append(ops, commitOp())
	}

	db, drv := newScriptedDB(t, ops)
	defer drv.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestRunMigrationsSkipsAppliedVersions(t *testing.T) {
	t.Parallel()

	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migration files failed: %v", err)
	}

	applied := scriptedRowsData{columns: []string{"version"}}
	for _, file := range files {
		applied.values = append(applied.values, []driver.Value{file.version})
	}

	db, drv := newScriptedDB(t, []scriptedOp{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, scriptedResult{}),
		queryOp(`SELECT version FROM schema_migrations`, applied),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func insertAnalysisSQL() string {
	return `INSERT INTO analyses
        (query, dataset, code, output, observes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
}

// 以下是按脚本回放 SQL 操作的 driver 实现，供上面的仓库测试使用。

type scriptedOpType int

const (
	opExec scriptedOpType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type scriptedOp struct {
	typ    scriptedOpType
	query  string
	result scriptedResult
	rows   scriptedRowsData
	err    error
}

type scriptedResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r scriptedResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r scriptedResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type scriptedRowsData struct {
	columns []string
	values  [][]driver.Value
}

type scriptedDriver struct {
	ops []scriptedOp
	idx int32
}

var scriptedDriverSeq atomic.Int32

func newScriptedDB(t *testing.T, ops []scriptedOp) (*sql.DB, *scriptedDriver) {
	t.Helper()

	drv := &scriptedDriver{ops: ops}
	name := fmt.Sprintf("scripted-mysql-%d", scriptedDriverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open scripted db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result scriptedResult) scriptedOp {
	return scriptedOp{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows scriptedRowsData) scriptedOp {
	return scriptedOp{typ: opQuery, query: query, rows: rows}
}

func beginOp() scriptedOp { return scriptedOp{typ: opBegin} }

func commitOp() scriptedOp { return scriptedOp{typ: opCommit} }

func (d *scriptedDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{driver: d}, nil
}

func (d *scriptedDriver) next(expected scriptedOpType, query string) (*scriptedOp, error) {
	idx := int(atomic.LoadInt32(&d.idx))
	if idx >= len(d.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &d.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&d.idx, 1)
	if op.query != "" {
		want := normalizeSQL(op.query)
		got := normalizeSQL(query)
		if want != got {
			return nil, fmt.Errorf("unexpected query. want %q got %q", want, got)
		}
	}
	return op, nil
}

type scriptedConn struct {
	driver *scriptedDriver
}

func (c *scriptedConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *scriptedConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	op, err := c.driver.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &scriptedTx{driver: c.driver}, nil
}

func (c *scriptedConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, namedValues(args))
}

func (c *scriptedConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	op, err := c.driver.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *scriptedConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, namedValues(args))
}

func (c *scriptedConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	op, err := c.driver.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &scriptedRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *scriptedConn) Ping(context.Context) error { return nil }

type scriptedTx struct {
	driver *scriptedDriver
}

func (t *scriptedTx) Commit() error {
	op, err := t.driver.next(opCommit, "")
	if err != nil {
		return err
	}
	return op.err
}

func (t *scriptedTx) Rollback() error {
	op, err := t.driver.next(opRollback, "")
	if err != nil {
		return err
	}
	return op.err
}

type scriptedRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }
func (r *scriptedRows) Close() error      { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return named
}

func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
