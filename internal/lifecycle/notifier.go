package lifecycle

import (
	"log/slog"

	"nebnav/internal/models"
)

// Notifier receives lifecycle events as fire-and-forget signals. The
// coordinator's correctness never depends on a notification being observed,
// so implementations must not return errors or block.
type Notifier interface {
	TaskCompleted(task models.Task)
	TaskDelegated(task models.Task)
	TaskPromoted(task models.Task)
	TaskRestored(task models.Task)
	TaskArchived(id string)
	BacklogEvaporated(count int64)
}

// LogNotifier narrates lifecycle events through slog.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier wraps the given logger, falling back to slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) TaskCompleted(task models.Task) {
	n.logger.Info("mission accomplished, another star on the map", slog.String("id", task.ID))
}

func (n *LogNotifier) TaskDelegated(task models.Task) {
	n.logger.Info("task moved to cargo hold", slog.String("id", task.ID))
}

func (n *LogNotifier) TaskPromoted(task models.Task) {
	n.logger.Info("objective retrieved from cargo", slog.String("id", task.ID))
}

func (n *LogNotifier) TaskRestored(task models.Task) {
	n.logger.Info("artifact retrieved from the void", slog.String("id", task.ID))
}

func (n *LogNotifier) TaskArchived(id string) {
	n.logger.Info("task archived", slog.String("id", id))
}

func (n *LogNotifier) BacklogEvaporated(count int64) {
	n.logger.Info("stagnant cargo moved to the void", slog.Int64("count", count))
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) TaskCompleted(models.Task) {}
func (NopNotifier) TaskDelegated(models.Task) {}
func (NopNotifier) TaskPromoted(models.Task)  {}
func (NopNotifier) TaskRestored(models.Task)  {}
func (NopNotifier) TaskArchived(string)       {}
func (NopNotifier) BacklogEvaporated(int64)   {}
