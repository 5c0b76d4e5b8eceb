package probe

import (
	"context"
	"fmt"
	"strings"
)

// Version reports the monitored node CLI's version string, e.g.
// "solana-cli 1.18.26". The tool binary is the first element of the catchup
// command so both probes always target the same installation.
func (c *Catchup) Version(ctx context.Context) (string, error) {
	stdout, _, err := c.executor.Run(ctx, c.command[0], "--version")
	if err != nil {
		return "", fmt.Errorf("querying %s version: %w", c.command[0], err)
	}
	v := strings.TrimSpace(string(stdout))
	if v == "" {
		return "", fmt.Errorf("%s --version produced no output", c.command[0])
	}
	return v, nil
}
