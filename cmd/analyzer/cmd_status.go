package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/dashboard"
	"contractanalyzer/internal/shell"
)

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and collection counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
				w := cmd.OutOrStdout()
				data := a.Core.State().Data

				printField(w, "Backend", a.Config.API.BaseURL)
				switch h := data.SystemStatus; {
				case h.Healthy():
					status := h.Status
					if h.Version != "" {
						status += " (" + h.Version + ")"
					}
					printField(w, "Health", successColor.Sprint(status))
				case h != nil:
					printField(w, "Health", warningColor.Sprint(h.Status))
				default:
					printField(w, "Health", errorColor.Sprint("unreachable"))
					return shell.Handled(errors.New("backend unreachable"))
				}

				printField(w, "Contracts", len(data.Contracts))
				printField(w, "Templates", len(data.Templates))
				printField(w, "Analyses", len(data.AnalysisResults))
				printField(w, "Pending review", dashboard.PendingReview(data.AnalysisResults))
				return nil
			})
		},
	}
}
