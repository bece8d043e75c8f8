// Command analyzer is the Contract Analyzer console.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/tui"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	apiURL     string
	timeout    time.Duration
	verbose    bool

	// downloadDir is set by commands that save files.
	downloadDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "analyzer",
		Short: "Contract Analyzer console",
		Long: `Contract Analyzer compares uploaded contracts against templates and
reports the differences.

Run without arguments to start the interactive console. The subcommands
perform single operations against the same backend.`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath(), "Config file")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Backend URL (overrides config and ANALYZER_API_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Timeout for one-shot commands")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newStatusCmd(opts),
		newUploadCmd(opts),
		newAnalyzeCmd(opts),
		newReportCmd(opts),
		newPromptsCmd(opts),
		newMockServerCmd(opts),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides. The second
// result reports whether the file can be watched for live reload.
func (o *rootOptions) loadConfig() (*config.Config, bool, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, false, err
	}
	watchable := true
	if o.apiURL != "" {
		cfg.API.BaseURL = o.apiURL
		watchable = false
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
		watchable = false
	}
	if o.downloadDir != "" {
		cfg.Downloads.Dir = o.downloadDir
	}
	return cfg, watchable, nil
}

func runConsole(ctx context.Context, o *rootOptions) error {
	cfg, watchable, err := o.loadConfig()
	if err != nil {
		return err
	}

	opts := app.Options{Config: cfg}
	if watchable {
		opts = app.Options{ConfigPath: o.configPath, Watch: true}
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return tui.Run(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		// handled errors were already shown to the user
		if !shell.IsHandled(err) {
			color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
