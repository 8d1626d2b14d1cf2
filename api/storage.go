package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// SQLSTATE unique_violation.
const pqUniqueViolation = "23505"

var (
	errRecordNotFound    = errors.New("record not found")
	errDuplicateUsername = errors.New("duplicate username")
)

type userStore interface {
	insertUser(ctx context.Context, u *user) error
	getUserByUsername(ctx context.Context, username string) (*user, error)
}

// taskStore operations always take the owner id; a task owned by someone
// else behaves exactly like a task that does not exist.
type taskStore interface {
	insertTask(ctx context.Context, t *task) error
	getTasksForUser(ctx context.Context, userID uuid.UUID) ([]*task, error)
	updateTaskStatus(ctx context.Context, id, userID uuid.UUID, status string) (*task, error)
	updateTaskPriority(ctx context.Context, id, userID uuid.UUID, priority string) (*task, error)
	deleteTask(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type store interface {
	userStore
	taskStore
	ping(ctx context.Context) error
}

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.db.maxOpenConnections)
	db.SetMaxIdleConns(cfg.db.maxIdleConnections)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies the embedded schema files in name order. Every statement is
// idempotent so it is safe to run on each start.
func migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := migrationFiles.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return err
		}
	}
	return nil
}

type storage struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func newStorage(db *sql.DB, queryTimeout time.Duration) *storage {
	return &storage{
		db:           db,
		queryTimeout: queryTimeout,
	}
}

func (s *storage) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *storage) insertUser(ctx context.Context, u *user) error {
	query := `INSERT INTO users (id, username, password_hash)
			  VALUES ($1, $2, $3)
			  RETURNING created_at`

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	u.ID = uuid.New()
	err := s.db.QueryRowContext(ctx, query, u.ID, u.Username, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return errDuplicateUsername
		}
		return err
	}
	return nil
}

func (s *storage) getUserByUsername(ctx context.Context, username string) (*user, error) {
	query := `SELECT id, created_at, username, password_hash
			  FROM users
			  WHERE username = $1`
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, username)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.PasswordHash)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *storage) insertTask(ctx context.Context, t *task) error {
	query := `INSERT INTO tasks (id, user_id, text, status, priority)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING created_at`

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	t.ID = uuid.New()
	return s.db.QueryRowContext(ctx, query, t.ID, t.UserID, t.Text, t.Status, t.Priority).Scan(&t.CreatedAt)
}

func (s *storage) getTasksForUser(ctx context.Context, userID uuid.UUID) ([]*task, error) {
	query := `SELECT id, created_at, user_id, text, status, priority
			  FROM tasks
			  WHERE user_id = $1
			  ORDER BY created_at, id`
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*task{}
	for rows.Next() {
		var t task
		err := rows.Scan(&t.ID, &t.CreatedAt, &t.UserID, &t.Text, &t.Status, &t.Priority)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *storage) updateTaskStatus(ctx context.Context, id, userID uuid.UUID, status string) (*task, error) {
	query := `UPDATE tasks SET status = $1
			  WHERE id = $2 AND user_id = $3
			  RETURNING id, created_at, user_id, text, status, priority`
	return s.updateTask(ctx, query, status, id, userID)
}

func (s *storage) updateTaskPriority(ctx context.Context, id, userID uuid.UUID, priority string) (*task, error) {
	query := `UPDATE tasks SET priority = $1
			  WHERE id = $2 AND user_id = $3
			  RETURNING id, created_at, user_id, text, status, priority`
	return s.updateTask(ctx, query, priority, id, userID)
}

func (s *storage) updateTask(ctx context.Context, query, value string, id, userID uuid.UUID) (*task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var t task
	err := s.db.QueryRowContext(ctx, query, value, id, userID).
		Scan(&t.ID, &t.CreatedAt, &t.UserID, &t.Text, &t.Status, &t.Priority)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, errRecordNotFound
		default:
			return nil, err
		}
	}
	return &t, nil
}

func (s *storage) deleteTask(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM tasks
			  WHERE id = $1 AND user_id = $2`
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
