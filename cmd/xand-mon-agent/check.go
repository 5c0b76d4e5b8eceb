package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/T3chie-404/xand-mon-agent/internal/config"
	"github.com/T3chie-404/xand-mon-agent/internal/probe"
)

func executeCheck(cmd *cobra.Command, cfg *config.Config, prober probe.Prober) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ProbeTimeout)
	defer cancel()
	return runCheckOnce(cmd.OutOrStdout(), cfg.NodeName, prober.Probe(ctx))
}

func runCheckOnce(out io.Writer, nodeName string, result probe.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tHEALTHY\tSLOT\tCLUSTER\tLAG\tERROR")

	if result.Healthy {
		fmt.Fprintf(w, "%s\tyes\t%d\t%d\t%d\t\n",
			nodeName,
			result.CurrentSlot,
			result.ClusterSlot,
			result.Lag,
		)
	} else {
		fmt.Fprintf(w, "%s\tno\t—\t—\t—\t%s: %s\n",
			nodeName,
			result.Failure,
			result.Error,
		)
	}
	w.Flush()

	if !result.Healthy {
		return fmt.Errorf("probe failed (%s)", result.Failure)
	}
	return nil
}
