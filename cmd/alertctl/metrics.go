package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwvgroup/pittgoogle-user/pkg/metrics"
	"github.com/mwvgroup/pittgoogle-user/pkg/shared"
)

func metricsCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics [DEPLOYMENT]",
		Short: "Print classifier metrics from Redis",
		Long: `Print the latest metrics snapshot of every running classifier, or of one
deployment (for example supernnova-elasticc).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := shared.ConnectRedis(ctx, v.GetString("redis-addr"))
			if err != nil {
				return err
			}
			defer client.Close()

			reader := metrics.NewReader(client)
			var snaps []*metrics.Snapshot
			if len(args) == 1 {
				snap, err := reader.Get(ctx, args[0])
				if err != nil {
					return err
				}
				snaps = append(snaps, snap)
			} else if snaps, err = reader.All(ctx); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No classifier metrics found.")
				return nil
			}
			return printSnapshots(cmd, snaps)
		},
	}

	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	_ = v.BindPFlag("redis-addr", cmd.Flags().Lookup("redis-addr"))
	cmd.Flags().BoolVar(&asJSON, "json", false, "print snapshots as JSON")
	return cmd
}

func printSnapshots(cmd *cobra.Command, snaps []*metrics.Snapshot) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEPLOYMENT\tSTATUS\tRECEIVED\tPROCESSED\tPUBLISHED\tERRORS\tRATE/S\tAVG MS\tUPDATED")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%.2f\t%.1f\t%s\n",
			s.Deployment,
			s.Status,
			s.AlertsReceived,
			s.AlertsProcessed,
			s.AlertsPublished,
			formatCounts(s.Errors),
			s.AlertsPerSecond,
			s.AvgLatencyMs,
			s.LastUpdated.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

// formatCounts renders a counter map as k=v pairs sorted by key.
func formatCounts(m map[string]uint64) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}
