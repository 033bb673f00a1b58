package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tasklabs/taskmate/internal/task"
)

// Fixed-width UTC timestamp format so lexical ordering in SQL matches
// chronological ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the SQLite-backed task table behind the bundled server.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'todo',
			due_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// sortColumns whitelists ORDER BY targets; order criteria never reach SQL
// as raw strings.
var sortColumns = map[task.Column]string{
	task.ColCreatedAt: "created_at",
	task.ColUpdatedAt: "updated_at",
	task.ColDueDate:   "due_date",
	task.ColTitle:     "title COLLATE NOCASE",
	task.ColStatus:    "status",
}

// List applies the criteria's status equality filter, case-insensitive
// title substring filter, and single sort key. SQLite sorts NULLs first
// ascending and last descending, matching the in-memory view semantics.
func (s *Store) List(ctx context.Context, c task.Criteria) ([]task.Task, error) {
	query := "SELECT id, title, description, status, due_date, created_at, updated_at FROM tasks"
	var where []string
	var args []any

	if c.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(c.Status))
	}
	if c.Search != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(c.Search)+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	col, ok := sortColumns[c.Order.Column]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if c.Order.Ascending {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", col, dir)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, description, status, due_date, created_at, updated_at FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("create task: empty title")
	}

	status := in.Status
	if status == "" {
		status = task.StatusTodo
	}
	if !status.Valid() {
		status = task.NormalizeStatus(string(status))
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(timestampLayout)

	var due any
	if in.DueDate != nil {
		due = in.DueDate.String()
	}
	var desc any
	if in.Description != nil {
		desc = *in.Description
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (id, title, description, status, due_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, strings.TrimSpace(in.Title), desc, string(status), due, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.Get(ctx, id)
}

// Update writes only the set patch fields. Returns nil if the row does
// not exist.
func (s *Store) Update(ctx context.Context, id string, p task.Patch) (*task.Task, error) {
	var sets []string
	var args []any

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(task.NormalizeStatus(string(*p.Status))))
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, p.DueDate.String())
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update task: empty patch")
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(timestampLayout))
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// Delete removes the row. Reports whether a row was actually deleted;
// deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountFilter narrows Count. Zero values mean no constraint.
type CountFilter struct {
	DueOn         *task.Date
	DueBefore     *task.Date
	ExcludeStatus task.Status
}

func (s *Store) Count(ctx context.Context, f CountFilter) (int, error) {
	query := "SELECT COUNT(*) FROM tasks"
	var where []string
	var args []any

	if f.DueOn != nil {
		where = append(where, "due_date = ?")
		args = append(args, f.DueOn.String())
	}
	if f.DueBefore != nil {
		where = append(where, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, f.DueBefore.String())
	}
	if f.ExcludeStatus != "" {
		where = append(where, "status != ?")
		args = append(args, string(f.ExcludeStatus))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// Statuses returns the status column of every row, for histogram queries.
func (s *Store) Statuses(ctx context.Context) ([]task.Status, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status FROM tasks")
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	defer rows.Close()

	var out []task.Status
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		out = append(out, task.NormalizeStatus(s))
	}
	return out, rows.Err()
}

// Columns returns the tasks table column names, used by the schema probe
// endpoint.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(tasks)")
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (task.Task, error) {
	var (
		t         task.Task
		desc      sql.NullString
		status    string
		due       sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Title, &desc, &status, &due, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, err
		}
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.Status = task.NormalizeStatus(status)
	if due.Valid && due.String != "" {
		d, err := task.ParseDate(due.String)
		if err != nil {
			return task.Task{}, err
		}
		t.DueDate = &d
	}
	var err error
	if t.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return task.Task{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timestampLayout, updatedAt); err != nil {
		return task.Task{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
