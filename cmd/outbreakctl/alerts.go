package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"outbreakwatch/internal/types"
)

func (c *cli) alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and resolve outbreak alerts",
	}
	cmd.AddCommand(c.alertsListCmd())
	cmd.AddCommand(c.alertsResolveCmd())
	return cmd
}

func (c *cli) alertsListCmd() *cobra.Command {
	var (
		status string
		area   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := types.AlertFilter{
				Status:  types.AlertStatus(strings.ToUpper(status)),
				AreaKey: area,
			}
			return c.withEngine(cmd.Context(), nil, func(e *engine) error {
				alerts, err := e.Alerts.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					if alerts == nil {
						alerts = []types.Alert{}
					}
					return writeJSON(c.out, alerts)
				}
				if len(alerts) == 0 {
					fmt.Fprintln(c.out, "no alerts")
					return nil
				}
				tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tAREA\tSTATUS\tCREATED\tRESOLVED BY")
				for _, a := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						a.ID, a.AreaKey, a.Status, a.CreatedAt.Format(time.RFC3339), a.ResolvedBy)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE or RESOLVED")
	cmd.Flags().StringVar(&area, "area", "", "only alerts for this area key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print alerts as JSON")
	return cmd
}

func (c *cli) alertsResolveCmd() *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an ACTIVE alert",
		Long:  "Marks the alert RESOLVED. A later high-risk query may raise a new alert for the area.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := types.WithActor(cmd.Context(), types.Actor{
				ID:     as,
				Type:   types.ActorTypeOperator,
				Source: "cli",
			})
			return c.withEngine(ctx, nil, func(e *engine) error {
				alert, err := e.Alerts.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "resolved %s (area %s) by %s\n", alert.ID, alert.AreaKey, alert.ResolvedBy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "outbreakctl", "operator name recorded as the resolver")
	return cmd
}
