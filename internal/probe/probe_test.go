package probe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/T3chie-404/xand-mon-agent/internal/probe"
)

// mockExecutor implements probe.CommandExecutor for testing.
type mockExecutor struct {
	stdout []byte
	stderr []byte
	err    error
}

func (m *mockExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	return m.stdout, m.stderr, m.err
}

var testCommand = []string{"solana", "catchup", "--our-localhost", "8899"}

func newProber(exec probe.CommandExecutor) *probe.Catchup {
	return probe.NewCatchupWithExecutor(testCommand, exec)
}

func TestProbe_UsThemFormat(t *testing.T) {
	c := newProber(&mockExecutor{
		stdout: []byte("2891928 slot(s) behind (us:160398300 them:163290228)\n"),
	})

	result := c.Probe(context.Background())
	if !result.Healthy {
		t.Fatalf("expected healthy result, got failure %q: %s", result.Failure, result.Error)
	}
	if result.CurrentSlot != 160398300 {
		t.Errorf("expected current slot 160398300, got %d", result.CurrentSlot)
	}
	if result.ClusterSlot != 163290228 {
		t.Errorf("expected cluster slot 163290228, got %d", result.ClusterSlot)
	}
	if result.Lag != 2891928 {
		t.Errorf("expected lag 2891928, got %d", result.Lag)
	}
}

func TestProbe_NegativeDeltaClampsToZero(t *testing.T) {
	// Local node momentarily ahead of the reference RPC.
	c := newProber(&mockExecutor{
		stdout: []byte("node has caught up (us:245678910 them:245678905)\n"),
	})

	result := c.Probe(context.Background())
	if !result.Healthy {
		t.Fatalf("expected healthy result, got failure %q: %s", result.Failure, result.Error)
	}
	if result.Lag != 0 {
		t.Errorf("expected lag clamped to 0, got %d", result.Lag)
	}
	if result.CurrentSlot != 245678910 || result.ClusterSlot != 245678905 {
		t.Errorf("expected slots preserved, got us=%d them=%d", result.CurrentSlot, result.ClusterSlot)
	}
}

func TestProbe_OutputParsing(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantCurrent uint64
		wantCluster uint64
		wantLag     uint64
	}{
		{
			name:        "behind by phrase",
			output:      "Validator is behind by 5 slots. Processed slot 245678901",
			wantCurrent: 245678901,
			wantCluster: 245678906,
			wantLag:     5,
		},
		{
			name:        "zero slots behind with colon",
			output:      "0 slots behind, processed slot: 245678901",
			wantCurrent: 245678901,
			wantCluster: 245678901,
			wantLag:     0,
		},
		{
			name:        "caught up",
			output:      "Validator is caught up. Processed slot 245678906",
			wantCurrent: 245678906,
			wantCluster: 245678906,
			wantLag:     0,
		},
		{
			name:        "unknown phrasing with slot present",
			output:      "status nominal, processed slot: 99",
			wantCurrent: 99,
			wantCluster: 99,
			wantLag:     0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newProber(&mockExecutor{stdout: []byte(tc.output)})
			result := c.Probe(context.Background())
			if !result.Healthy {
				t.Fatalf("expected healthy result, got failure %q: %s", result.Failure, result.Error)
			}
			if result.CurrentSlot != tc.wantCurrent {
				t.Errorf("current slot: want %d, got %d", tc.wantCurrent, result.CurrentSlot)
			}
			if result.ClusterSlot != tc.wantCluster {
				t.Errorf("cluster slot: want %d, got %d", tc.wantCluster, result.ClusterSlot)
			}
			if result.Lag != tc.wantLag {
				t.Errorf("lag: want %d, got %d", tc.wantLag, result.Lag)
			}
		})
	}
}

func TestProbe_NonZeroExit(t *testing.T) {
	c := newProber(&mockExecutor{
		stderr: []byte("Error: RPC request error\n"),
		err:    errors.New("exit status 1"),
	})

	result := c.Probe(context.Background())
	if result.Healthy {
		t.Fatal("expected unhealthy result for non-zero exit")
	}
	if result.Failure != probe.FailExit {
		t.Errorf("expected FailExit, got %q", result.Failure)
	}
	if !strings.Contains(result.Error, "RPC request error") {
		t.Errorf("expected stderr in error text, got %q", result.Error)
	}
	if result.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be set on failure")
	}
}

func TestProbe_Timeout(t *testing.T) {
	c := newProber(&mockExecutor{})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result := c.Probe(ctx)
	if result.Healthy {
		t.Fatal("expected unhealthy result on timeout")
	}
	if result.Failure != probe.FailTimeout {
		t.Errorf("expected FailTimeout, got %q", result.Failure)
	}
}

func TestProbe_UnparseableOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"no slot info", "some unexpected output\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newProber(&mockExecutor{stdout: []byte(tc.output)})
			result := c.Probe(context.Background())
			if result.Healthy {
				t.Fatal("expected unhealthy result for unparseable output")
			}
			if result.Failure != probe.FailParse {
				t.Errorf("expected FailParse, got %q", result.Failure)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	c := newProber(&mockExecutor{
		stdout: []byte("solana-cli 1.18.26 (src:d9f20e95; feat:3241752014)\n"),
	})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "solana-cli 1.18.26 (src:d9f20e95; feat:3241752014)" {
		t.Errorf("unexpected version string %q", v)
	}
}

func TestVersion_CommandFails(t *testing.T) {
	c := newProber(&mockExecutor{err: errors.New("exit status 127")})

	if _, err := c.Version(context.Background()); err == nil {
		t.Fatal("expected error when version command fails")
	}
}

func TestVersion_EmptyOutput(t *testing.T) {
	c := newProber(&mockExecutor{stdout: []byte("  \n")})

	if _, err := c.Version(context.Background()); err == nil {
		t.Fatal("expected error for empty version output")
	}
}
