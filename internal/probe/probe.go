// Package probe runs the node-status command and turns its output into a
// typed result. Scheduling and retry policy live elsewhere; a probe is a
// single invocation.
package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Prober performs a single catchup probe against the local node.
type Prober interface {
	Probe(ctx context.Context) Result
}

// CommandExecutor abstracts os/exec for testability.
type CommandExecutor interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Catchup probes slot lag by running the configured catchup command
// (typically `solana catchup --our-localhost <port>`) and parsing its stdout.
type Catchup struct {
	command  []string
	executor CommandExecutor
}

// NewCatchup creates a Catchup prober for the given command line.
func NewCatchup(command []string) *Catchup {
	return &Catchup{command: command, executor: &osExecutor{}}
}

// NewCatchupWithExecutor creates a Catchup prober with a custom executor (for testing).
func NewCatchupWithExecutor(command []string, exec CommandExecutor) *Catchup {
	return &Catchup{command: command, executor: exec}
}

// Catchup output comes in a few shapes depending on tool version:
//
//	"2891928 slot(s) behind (us:160398300 them:163290228)"
//	"Validator is behind by 5 slots. Processed slot 245678901"
//	"0 slots behind, processed slot: 245678901"
//	"Validator is caught up. Processed slot 245678906"
var (
	usThemRe      = regexp.MustCompile(`us:(\d+)\s+them:(\d+)`)
	processedRe   = regexp.MustCompile(`(?i)processed slot:?\s*(\d+)`)
	behindByRe    = regexp.MustCompile(`(?i)behind by (\d+) slots?`)
	slotsBehindRe = regexp.MustCompile(`(?i)(\d+) slot\(?s?\)? behind`)
)

// Probe runs the catchup command once, bounded by ctx. It never panics or
// returns an error; every failure mode is folded into the Result.
func (c *Catchup) Probe(ctx context.Context) Result {
	result := Result{CheckedAt: time.Now()}

	stdout, stderr, err := c.executor.Run(ctx, c.command[0], c.command[1:]...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Failure = FailTimeout
			result.Error = fmt.Sprintf("%s timed out", c.command[0])
			return result
		}
		result.Failure = FailExit
		result.Error = fmt.Sprintf("%s: %v", c.command[0], err)
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			result.Error += ": " + msg
		}
		return result
	}

	current, cluster, ok := parseCatchup(string(stdout))
	if !ok {
		result.Failure = FailParse
		result.Error = fmt.Sprintf("no slot information in output: %q", strings.TrimSpace(string(stdout)))
		return result
	}

	result.CurrentSlot = current
	result.ClusterSlot = cluster
	if cluster > current {
		result.Lag = cluster - current
	}
	result.Healthy = true
	return result
}

// parseCatchup extracts (current, cluster) slots from catchup output.
func parseCatchup(output string) (current, cluster uint64, ok bool) {
	if m := usThemRe.FindStringSubmatch(output); m != nil {
		current, _ = strconv.ParseUint(m[1], 10, 64)
		cluster, _ = strconv.ParseUint(m[2], 10, 64)
		return current, cluster, true
	}

	m := processedRe.FindStringSubmatch(output)
	if m == nil {
		return 0, 0, false
	}
	current, _ = strconv.ParseUint(m[1], 10, 64)

	// Anything without a "behind" figure ("caught up", or unknown phrasing
	// with the slot present) reads as zero lag.
	var lag uint64
	if b := behindByRe.FindStringSubmatch(output); b != nil {
		lag, _ = strconv.ParseUint(b[1], 10, 64)
	} else if b := slotsBehindRe.FindStringSubmatch(output); b != nil {
		lag, _ = strconv.ParseUint(b[1], 10, 64)
	}
	return current, current + lag, true
}
