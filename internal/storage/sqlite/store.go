package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"nebnav/internal/lifecycle"
	"nebnav/internal/models"
)

// Store wraps access to the SQLite database and owns every task,
// archive, star and log record. All lifecycle writes go through it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes the store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection: concurrent transitions on the same task serialize
	// at the store boundary, so the legality check and the write are atomic
	// together.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            text TEXT NOT NULL,
            type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            energy_level INTEGER,
            expedition_id TEXT,
            expedition_title TEXT,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_created ON tasks(status, created_at);`,
		`CREATE TABLE IF NOT EXISTS archived_tasks (
            id TEXT PRIMARY KEY,
            text TEXT NOT NULL,
            type TEXT NOT NULL,
            status TEXT NOT NULL,
            energy_level INTEGER,
            expedition_id TEXT,
            expedition_title TEXT,
            created_at INTEGER NOT NULL,
            archived_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS completed_tasks (
            id TEXT PRIMARY KEY,
            text TEXT NOT NULL,
            type TEXT NOT NULL,
            x REAL NOT NULL,
            y REAL NOT NULL,
            completed_date TEXT NOT NULL,
            expedition_id TEXT,
            expedition_title TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS log_entries (
            id TEXT PRIMARY KEY,
            date TEXT NOT NULL UNIQUE,
            created_at INTEGER NOT NULL,
            mood INTEGER NOT NULL,
            text TEXT NOT NULL DEFAULT ''
        );`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func storagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", lifecycle.ErrStorage, fmt.Sprintf(format, args...))
}

const taskColumns = `id, text, type, status, energy_level, expedition_id, expedition_title, created_at`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t       models.Task
		effort  sql.NullInt64
		expID   sql.NullString
		expName sql.NullString
	)
	err := row.Scan(&t.ID, &t.Text, &t.Category, &t.State, &effort, &expID, &expName, &t.CreatedAt)
	if err != nil {
		return models.Task{}, err
	}
	if effort.Valid {
		t.EffortLevel = int(effort.Int64)
	}
	if expID.Valid {
		t.ExpeditionID = expID.String
	}
	if expName.Valid {
		t.ExpeditionTitle = expName.String
	}
	return t, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullEffort(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func validateTask(t models.Task) error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: task text must not be empty", lifecycle.ErrValidation)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", lifecycle.ErrValidation, t.Category)
	}
	if !t.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", lifecycle.ErrValidation, t.State)
	}
	if t.EffortLevel != 0 && (t.EffortLevel < 1 || t.EffortLevel > 5) {
		return fmt.Errorf("%w: effort level %d outside 1-5", lifecycle.ErrValidation, t.EffortLevel)
	}
	return nil
}

// CreateTasks inserts a batch of tasks in a single transaction. Either every
// task lands or none do.
func (s *Store) CreateTasks(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storagef("begin insert: %v", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, strings.TrimSpace(t.Text), t.Category, t.State,
			nullEffort(t.EffortLevel), nullString(t.ExpeditionID), nullString(t.ExpeditionTitle), t.CreatedAt)
		if err != nil {
			return storagef("insert task %s: %v", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storagef("commit insert: %v", err)
	}
	return nil
}

// GetTask fetches a single live task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return models.Task{}, storagef("get task: %v", err)
	}
	return t, nil
}

// ListTasksByState returns live tasks in the given state, most recent first.
// An empty state lists everything.
func (s *Store) ListTasksByState(ctx context.Context, state models.State) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, id`
	args := []any{}
	if state != "" {
		if !state.Valid() {
			return nil, fmt.Errorf("%w: unknown state %q", lifecycle.ErrValidation, state)
		}
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE status = ? ORDER BY created_at DESC, id`
		args = append(args, state)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storagef("list tasks: %v", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storagef("scan task: %v", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storagef("list tasks: %v", err)
	}
	return tasks, nil
}

// Transition atomically checks the legal-transition table and applies the
// move. Entering the backlog (delegate or restore) refreshes created_at so
// the evaporation clock restarts.
func (s *Store) Transition(ctx context.Context, id string, target models.State, now time.Time) (models.Task, error) {
	if !target.Valid() {
		return models.Task{}, fmt.Errorf("%w: unknown state %q", lifecycle.ErrValidation, target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, storagef("begin transition: %v", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return models.Task{}, storagef("read task: %v", err)
	}

	if !models.CanTransition(t.State, target) {
		return models.Task{}, &lifecycle.TransitionError{ID: id, From: t.State, To: target}
	}

	if target == models.StateBacklog {
		t.CreatedAt = now.UnixMilli()
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ?, created_at = ? WHERE id = ?`, target, t.CreatedAt, id)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, target, id)
	}
	if err != nil {
		return models.Task{}, storagef("write transition: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, storagef("commit transition: %v", err)
	}
	t.State = target
	return t, nil
}

// CompleteTask moves an active task to completed and writes its star marker
// in the same transaction. The marker is created exactly once; completing an
// already-completed task is an illegal transition, not a duplicate star.
func (s *Store) CompleteTask(ctx context.Context, id string, now time.Time, x, y float64) (models.Task, models.Star, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, models.Star{}, storagef("begin complete: %v", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.Star{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return models.Task{}, models.Star{}, storagef("read task: %v", err)
	}

	if !models.CanTransition(t.State, models.StateCompleted) {
		return models.Task{}, models.Star{}, &lifecycle.TransitionError{ID: id, From: t.State, To: models.StateCompleted}
	}

	star := models.Star{
		ID:              t.ID,
		Text:            t.Text,
		Category:        t.Category,
		X:               x,
		Y:               y,
		CompletedDate:   now.Format("2006-01-02"),
		ExpeditionID:    t.ExpeditionID,
		ExpeditionTitle: t.ExpeditionTitle,
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, models.StateCompleted, id); err != nil {
		return models.Task{}, models.Star{}, storagef("write transition: %v", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO completed_tasks (id, text, type, x, y, completed_date, expedition_id, expedition_title)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		star.ID, star.Text, star.Category, star.X, star.Y, star.CompletedDate,
		nullString(star.ExpeditionID), nullString(star.ExpeditionTitle))
	if err != nil {
		return models.Task{}, models.Star{}, storagef("insert star: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, models.Star{}, storagef("commit complete: %v", err)
	}
	t.State = models.StateCompleted
	return t, star, nil
}

// UpdateEffortLevel adjusts a task's effort estimate in place.
func (s *Store) UpdateEffortLevel(ctx context.Context, id string, level int) (models.Task, error) {
	if level < 1 || level > 5 {
		return models.Task{}, fmt.Errorf("%w: effort level %d outside 1-5", lifecycle.ErrValidation, level)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET energy_level = ? WHERE id = ?`, level, id)
	if err != nil {
		return models.Task{}, storagef("update effort: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, storagef("update effort: %v", err)
	}
	if affected == 0 {
		return models.Task{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	return s.GetTask(ctx, id)
}

// ArchiveTask moves a live task into the archive table and removes it from
// the live set, as one atomic unit. Archiving an id that is already archived
// is a no-op success. Only active and backlog tasks may be archived.
func (s *Store) ArchiveTask(ctx context.Context, id string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storagef("begin archive: %v", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		var archived int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM archived_tasks WHERE id = ?`, id).Scan(&archived); err != nil {
			return storagef("check archive: %v", err)
		}
		if archived > 0 {
			return nil
		}
		return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return storagef("read task: %v", err)
	}

	if !models.CanTransition(t.State, models.StateArchived) {
		return &lifecycle.TransitionError{ID: id, From: t.State, To: models.StateArchived}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO archived_tasks (id, text, type, status, energy_level, expedition_id, expedition_title, created_at, archived_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Text, t.Category, models.StateArchived,
		nullEffort(t.EffortLevel), nullString(t.ExpeditionID), nullString(t.ExpeditionTitle),
		t.CreatedAt, now.UnixMilli())
	if err != nil {
		return storagef("insert archive: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return storagef("delete task: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return storagef("commit archive: %v", err)
	}
	return nil
}

// EvaporateTasks commits a backlog -> void batch in one transaction. The
// status guard makes the batch idempotent: ids that already left the backlog
// are skipped, never re-moved or duplicated.
func (s *Store) EvaporateTasks(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storagef("begin evaporation: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE status = ? AND id IN (`+placeholders+`)`,
		append([]any{models.StateVoid, models.StateBacklog}, args...)...)
	if err != nil {
		return 0, storagef("evaporate batch: %v", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, storagef("evaporate batch: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storagef("commit evaporation: %v", err)
	}
	return moved, nil
}

// ListStars returns every completion marker for the star map.
func (s *Store) ListStars(ctx context.Context) ([]models.Star, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, type, x, y, completed_date, expedition_id, expedition_title FROM completed_tasks`)
	if err != nil {
		return nil, storagef("list stars: %v", err)
	}
	defer rows.Close()

	var stars []models.Star
	for rows.Next() {
		var (
			star    models.Star
			expID   sql.NullString
			expName sql.NullString
		)
		if err := rows.Scan(&star.ID, &star.Text, &star.Category, &star.X, &star.Y, &star.CompletedDate, &expID, &expName); err != nil {
			return nil, storagef("scan star: %v", err)
		}
		star.ExpeditionID = expID.String
		star.ExpeditionTitle = expName.String
		stars = append(stars, star)
	}
	return stars, rows.Err()
}

// SaveLogEntry upserts the journal entry for the given calendar date. A
// second save on the same date appends text and overwrites mood.
func (s *Store) SaveLogEntry(ctx context.Context, date string, mood int, text string, now time.Time) (models.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.LogEntry{}, storagef("begin log save: %v", err)
	}
	defer tx.Rollback()

	var entry models.LogEntry
	err = tx.QueryRowContext(ctx, `SELECT id, date, created_at, mood, text FROM log_entries WHERE date = ?`, date).
		Scan(&entry.ID, &entry.Date, &entry.CreatedAt, &entry.Mood, &entry.Text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		entry = models.LogEntry{
			ID:        "log-" + uuid.NewString(),
			Date:      date,
			CreatedAt: now.UnixMilli(),
			Mood:      mood,
			Text:      text,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO log_entries (id, date, created_at, mood, text) VALUES (?, ?, ?, ?, ?)`,
			entry.ID, entry.Date, entry.CreatedAt, entry.Mood, entry.Text)
		if err != nil {
			return models.LogEntry{}, storagef("insert log entry: %v", err)
		}
	case err != nil:
		return models.LogEntry{}, storagef("read log entry: %v", err)
	default:
		if strings.TrimSpace(text) != "" {
			if entry.Text != "" {
				entry.Text += "\n\n" + text
			} else {
				entry.Text = text
			}
		}
		entry.Mood = mood
		_, err = tx.ExecContext(ctx, `UPDATE log_entries SET mood = ?, text = ? WHERE date = ?`, entry.Mood, entry.Text, date)
		if err != nil {
			return models.LogEntry{}, storagef("update log entry: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.LogEntry{}, storagef("commit log save: %v", err)
	}
	return entry, nil
}

// ListLogEntries returns journal entries, newest first.
func (s *Store) ListLogEntries(ctx context.Context) ([]models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, created_at, mood, text FROM log_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, storagef("list log entries: %v", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.CreatedAt, &e.Mood, &e.Text); err != nil {
			return nil, storagef("scan log entry: %v", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
