package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"nebnav/internal/models"
)

// Store is the persistence capability the coordinator drives. All lifecycle
// writes flow through it; implementations must make each operation atomic.
type Store interface {
	CreateTasks(ctx context.Context, tasks []models.Task) error
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasksByState(ctx context.Context, state models.State) ([]models.Task, error)
	Transition(ctx context.Context, id string, target models.State, now time.Time) (models.Task, error)
	CompleteTask(ctx context.Context, id string, now time.Time, x, y float64) (models.Task, models.Star, error)
	UpdateEffortLevel(ctx context.Context, id string, level int) (models.Task, error)
	ArchiveTask(ctx context.Context, id string, now time.Time) error
	EvaporateTasks(ctx context.Context, ids []string) (int64, error)
}

// Categorizer turns free text into typed task drafts. Calls may fail or time
// out; a failure must never yield a partial draft list.
type Categorizer interface {
	ExtractTasks(ctx context.Context, text string) ([]models.Draft, error)
}

// ExpeditionRef ties a task to a long-running project. Purely descriptive.
type ExpeditionRef struct {
	ID    string
	Title string
}

// Coordinator orchestrates every lifecycle transition, user-triggered and
// policy-triggered, against the single authoritative store.
type Coordinator struct {
	store      Store
	policy     Policy
	categorize Categorizer
	notifier   Notifier
	logger     *slog.Logger
	clock      func() time.Time
}

// Option tweaks coordinator construction.
type Option func(*Coordinator)

// WithClock injects a deterministic time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithCategorizer wires the brain-dump extraction collaborator.
func WithCategorizer(cat Categorizer) Option {
	return func(c *Coordinator) { c.categorize = cat }
}

// WithNotifier wires the lifecycle event observer.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// NewCoordinator builds a coordinator over the given store and policy.
func NewCoordinator(store Store, policy Policy, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:    store,
		policy:   policy,
		notifier: NopNotifier{},
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func validateDraft(d models.Draft) error {
	if strings.TrimSpace(d.Text) == "" {
		return validationf("task text must not be empty")
	}
	if !d.Category.Valid() {
		return validationf("unknown category %q", d.Category)
	}
	if d.EffortLevel != 0 && (d.EffortLevel < 1 || d.EffortLevel > 5) {
		return validationf("effort level %d outside 1-5", d.EffortLevel)
	}
	return nil
}

// CreateTask inserts a single task. Standalone tasks start active; tasks
// logged under an expedition go straight into the backlog.
func (c *Coordinator) CreateTask(ctx context.Context, draft models.Draft, exp *ExpeditionRef) (models.Task, error) {
	tasks, err := c.CreateTasks(ctx, []models.Draft{draft}, exp)
	if err != nil {
		return models.Task{}, err
	}
	return tasks[0], nil
}

// CreateTasks inserts a batch of tasks in one atomic unit, e.g. the outcome
// of a triage pass. Validation rejects the whole batch before any write.
func (c *Coordinator) CreateTasks(ctx context.Context, drafts []models.Draft, exp *ExpeditionRef) ([]models.Task, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	now := c.clock().UnixMilli()
	state := models.StateActive
	if exp != nil {
		state = models.StateBacklog
	}

	tasks := make([]models.Task, 0, len(drafts))
	for _, d := range drafts {
		if err := validateDraft(d); err != nil {
			return nil, err
		}
		t := models.Task{
			ID:          uuid.NewString(),
			Text:        strings.TrimSpace(d.Text),
			Category:    d.Category,
			State:       state,
			EffortLevel: d.EffortLevel,
			CreatedAt:   now,
		}
		if exp != nil {
			t.ExpeditionID = exp.ID
			t.ExpeditionTitle = exp.Title
		}
		tasks = append(tasks, t)
	}

	if err := c.store.CreateTasks(ctx, tasks); err != nil {
		return nil, err
	}
	c.logger.Debug("tasks created", slog.Int("count", len(tasks)), slog.String("state", string(state)))
	return tasks, nil
}

// BrainDump runs the external extraction call and returns typed drafts for
// triage. On any failure zero drafts are returned and the caller keeps the
// raw text for retry.
func (c *Coordinator) BrainDump(ctx context.Context, text string) ([]models.Draft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validationf("brain dump text must not be empty")
	}
	if c.categorize == nil {
		return nil, fmt.Errorf("%w: no categorizer configured", ErrCategorization)
	}
	drafts, err := c.categorize.ExtractTasks(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCategorization, err)
	}
	for _, d := range drafts {
		if err := validateDraft(d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCategorization, err)
		}
	}
	return drafts, nil
}

// Complete moves an active task to completed and writes its star in the same
// atomic step. Completed is terminal.
func (c *Coordinator) Complete(ctx context.Context, id string) (models.Task, models.Star, error) {
	// Star position token in percent, consumed only by presentation.
	x := rand.Float64()*90 + 5
	y := rand.Float64()*90 + 5
	task, star, err := c.store.CompleteTask(ctx, id, c.clock(), x, y)
	if err != nil {
		return models.Task{}, models.Star{}, err
	}
	c.notifier.TaskCompleted(task)
	return task, star, nil
}

// Delegate moves an active task to the backlog, restarting its age clock.
func (c *Coordinator) Delegate(ctx context.Context, id string) (models.Task, error) {
	task, err := c.store.Transition(ctx, id, models.StateBacklog, c.clock())
	if err != nil {
		return models.Task{}, err
	}
	c.notifier.TaskDelegated(task)
	return task, nil
}

// Promote pulls a backlog task back onto the active list, keeping its
// expedition reference intact.
func (c *Coordinator) Promote(ctx context.Context, id string) (models.Task, error) {
	task, err := c.store.Transition(ctx, id, models.StateActive, c.clock())
	if err != nil {
		return models.Task{}, err
	}
	c.notifier.TaskPromoted(task)
	return task, nil
}

// Restore recovers an evaporated task from the void into the backlog. Its
// creation timestamp is refreshed, so the next sweep will not re-evaporate it.
func (c *Coordinator) Restore(ctx context.Context, id string) (models.Task, error) {
	task, err := c.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if task.State != models.StateVoid {
		return models.Task{}, &TransitionError{ID: id, From: task.State, To: models.StateBacklog}
	}
	task, err = c.store.Transition(ctx, id, models.StateBacklog, c.clock())
	if err != nil {
		return models.Task{}, err
	}
	c.notifier.TaskRestored(task)
	return task, nil
}

// SetEffort adjusts a task's effort level during triage.
func (c *Coordinator) SetEffort(ctx context.Context, id string, level int) (models.Task, error) {
	if level < 1 || level > 5 {
		return models.Task{}, validationf("effort level %d outside 1-5", level)
	}
	return c.store.UpdateEffortLevel(ctx, id, level)
}

// Archive removes a task from the live table, keeping a deletion record.
// Archiving an already-archived id is a no-op success.
func (c *Coordinator) Archive(ctx context.Context, id string) error {
	if err := c.store.ArchiveTask(ctx, id, c.clock()); err != nil {
		return err
	}
	c.notifier.TaskArchived(id)
	return nil
}

// Evaporate scans the full backlog once, partitions it with the policy
// predicate, and commits all resulting backlog -> void moves as one atomic
// batch. Re-running over an unchanged backlog is a harmless no-op: the store
// only moves rows still in backlog, so ids already in the void are never
// re-added.
func (c *Coordinator) Evaporate(ctx context.Context) (int64, error) {
	now := c.clock()
	backlog, err := c.store.ListTasksByState(ctx, models.StateBacklog)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, t := range backlog {
		if c.policy.ShouldEvaporate(t.CreatedAt, now) {
			stale = append(stale, t.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	moved, err := c.store.EvaporateTasks(ctx, stale)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		c.notifier.BacklogEvaporated(moved)
	}
	return moved, nil
}
