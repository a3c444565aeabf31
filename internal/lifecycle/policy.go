package lifecycle

import "time"

// DefaultEvaporationThreshold is how long a task may idle in the backlog
// before it evaporates into the void.
const DefaultEvaporationThreshold = 30 * 24 * time.Hour

// Policy decides whether a backlog task has gone stale. It is a pure
// predicate: no clock reads, no I/O.
type Policy struct {
	Threshold time.Duration
}

// NewPolicy returns a policy with the given threshold, falling back to the
// default when threshold is not positive.
func NewPolicy(threshold time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultEvaporationThreshold
	}
	return Policy{Threshold: threshold}
}

// ShouldEvaporate reports whether a backlog task created at createdAt (epoch
// milliseconds) is older than the threshold at the given instant. A missing
// timestamp is treated as created now, so such a task never evaporates on
// its first check.
func (p Policy) ShouldEvaporate(createdAt int64, now time.Time) bool {
	if createdAt <= 0 {
		return false
	}
	age := now.UnixMilli() - createdAt
	return age > p.Threshold.Milliseconds()
}
