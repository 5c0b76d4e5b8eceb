package probe

import "time"

// FailureKind classifies why a probe cycle failed.
type FailureKind string

const (
	// FailTimeout means the catchup command outlived its deadline and was killed.
	FailTimeout FailureKind = "timeout"
	// FailExit means the command exited non-zero.
	FailExit FailureKind = "exit"
	// FailParse means the command succeeded but its output had no recognizable
	// slot information.
	FailParse FailureKind = "parse"
)

// Result is the outcome of a single catchup probe.
type Result struct {
	CurrentSlot uint64
	ClusterSlot uint64
	Lag         uint64
	Healthy     bool
	Failure     FailureKind
	Error       string
	CheckedAt   time.Time
}
