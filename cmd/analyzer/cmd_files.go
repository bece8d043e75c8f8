package main

import (
	"context"

	"github.com/spf13/cobra"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/upload"
)

func newUploadCmd(o *rootOptions) *cobra.Command {
	var asTemplate bool
	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload contracts, or templates with --template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sel upload.Selection
			for _, arg := range args {
				s, err := upload.FromInput(arg)
				if err != nil {
					return err
				}
				sel.Files = append(sel.Files, s.Files...)
			}
			return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
				if asTemplate {
					a.Upload.SetTarget(model.TargetTemplate)
				}
				return a.Upload.Upload(ctx, sel)
			})
		},
	}
	cmd.Flags().BoolVar(&asTemplate, "template", false, "Upload as templates")
	return cmd
}

func newAnalyzeCmd(o *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "analyze [contract-id]",
		Short: "Analyze one contract, or every contract with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
				if all {
					return a.Dashboard.AnalyzeAll(ctx)
				}
				return a.Dashboard.AnalyzeContract(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Analyze every contract against the latest template")
	return cmd
}

func newReportCmd(o *rootOptions) *cobra.Command {
	var (
		reportType string
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "report <analysis-id>",
		Short: "Generate and download a report",
		Long: `Generates a report for an analysis and saves it to the downloads folder.

Types:
  redlined       Word document with changes marked
  changes_table  Spreadsheet listing every change
  word           Word track changes (Windows backends with Word installed)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir != "" {
				o.downloadDir = outDir
			}
			return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
				// the saved path is reported as a notification
				if reportType == "word" {
					_, err := a.Dashboard.DownloadWordTrackChanges(ctx, args[0])
					return err
				}
				_, err := a.Dashboard.DownloadReport(ctx, args[0], model.ReportType(reportType))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&reportType, "type", "t", string(model.ReportRedlined), "Report type: redlined, changes_table or word")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to save into")
	return cmd
}
