package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"outbreakwatch/internal/outbreak"
	"outbreakwatch/internal/types"
)

func (c *cli) riskCmd() *cobra.Command {
	var (
		area      string
		noSummary bool
		at        string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Run the outbreak risk query",
		Long: "Computes per-area risk over the lookback window, raising alerts for high-risk areas " +
			"exactly as the API does. --at replays the query at a past instant.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var clock types.Clock
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				clock = types.FixedClock(t)
			}

			return c.withEngine(cmd.Context(), clock, func(e *engine) error {
				report, err := e.Risk.GetOutbreakRisk(cmd.Context(), outbreak.QueryOptions{
					AreaKey:     area,
					SkipSummary: noSummary,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(c.out, report)
				}
				writeRiskTable(c.out, report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&area, "area", "", "only report this area key")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip the AI summary")
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeRiskTable(w io.Writer, report *types.RiskReport) {
	fmt.Fprintf(w, "window since %s\n", report.Since.Format(time.RFC3339))
	if len(report.Areas) == 0 {
		fmt.Fprintln(w, "no areas")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "AREA\tRISK\tSYMPTOMS\tWATER FAILS\tTREND")
		for _, a := range report.Areas {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", a.AreaKey, a.Risk, a.SymptomCount, a.WaterFailCount, sparkline(a.Trend))
		}
		_ = tw.Flush()
	}
	if report.AISummary != "" {
		fmt.Fprintf(w, "\n%s\n", report.AISummary)
	}
}

// sparkline renders daily symptom+failure counts oldest first.
func sparkline(trend []types.TrendPoint) string {
	parts := make([]string, len(trend))
	for i, p := range trend {
		parts[i] = fmt.Sprint(p.Symptoms + p.WaterFails)
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
