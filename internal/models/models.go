package models

// State is the lifecycle state of a task. Every stored task carries exactly
// one of the five enumerated values.
type State string

const (
	StateActive    State = "active"
	StateBacklog   State = "backlog"
	StateVoid      State = "void"
	StateCompleted State = "completed"
	StateArchived  State = "archived"
)

// ValidStates enumerates the states a task may occupy.
var ValidStates = map[State]struct{}{
	StateActive:    {},
	StateBacklog:   {},
	StateVoid:      {},
	StateCompleted: {},
	StateArchived:  {},
}

// Valid reports whether s is one of the five lifecycle states.
func (s State) Valid() bool {
	_, ok := ValidStates[s]
	return ok
}

// Category classifies a task by the kind of energy it demands.
type Category string

const (
	// CategoryQuietNebula marks essential, low-energy maintenance work.
	CategoryQuietNebula Category = "quietNebula"
	// CategorySupernova marks aspirational, high-effort work.
	CategorySupernova Category = "supernova"
)

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	return c == CategoryQuietNebula || c == CategorySupernova
}

// Task is a single unit of work moving through the lifecycle.
type Task struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Category        Category `json:"type"`
	State           State    `json:"status"`
	EffortLevel     int      `json:"energyLevel,omitempty"`
	ExpeditionID    string   `json:"expeditionId,omitempty"`
	ExpeditionTitle string   `json:"expeditionTitle,omitempty"`
	CreatedAt       int64    `json:"createdAt"` // epoch milliseconds
}

// Draft is a categorized task candidate produced by the brain-dump
// extraction step, before the user commits it.
type Draft struct {
	Text        string   `json:"text"`
	Category    Category `json:"type"`
	EffortLevel int      `json:"energyLevel"`
}

// Star is the completion marker written once when a task reaches the
// completed state. X and Y are a position token in percent, consumed by the
// star map presentation; the core never reads them back.
type Star struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Category        Category `json:"type"`
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	CompletedDate   string   `json:"completedDate"` // YYYY-MM-DD
	ExpeditionID    string   `json:"expeditionId,omitempty"`
	ExpeditionTitle string   `json:"expeditionTitle,omitempty"`
}

// ArchivedTask is the deletion record kept when a task is removed from the
// live table.
type ArchivedTask struct {
	Task
	ArchivedAt int64 `json:"archivedAt"` // epoch milliseconds
}

// LogEntry is a per-day journal record. At most one exists per calendar
// date; later saves for the same date append text and overwrite mood.
type LogEntry struct {
	ID        string `json:"id"`
	Date      string `json:"date"` // YYYY-MM-DD
	CreatedAt int64  `json:"createdAt"`
	Mood      int    `json:"mood"`
	Text      string `json:"text"`
}

// legalTransitions is the full transition table. A (from, to) pair absent
// here is illegal; completed and archived have no outbound edges.
var legalTransitions = map[State]map[State]struct{}{
	StateActive: {
		StateCompleted: {},
		StateBacklog:   {},
		StateArchived:  {},
	},
	StateBacklog: {
		StateActive:   {},
		StateVoid:     {},
		StateArchived: {},
	},
	StateVoid: {
		StateBacklog: {},
	},
}

// CanTransition reports whether a task in state from may move to state to.
func CanTransition(from, to State) bool {
	targets, ok := legalTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Terminal reports whether s has no outbound transitions.
func (s State) Terminal() bool {
	return len(legalTransitions[s]) == 0
}
