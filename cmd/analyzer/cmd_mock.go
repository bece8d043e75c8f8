package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/logging"
	"contractanalyzer/internal/mockapi"
)

func newMockServerCmd(o *rootOptions) *cobra.Command {
	var (
		addr   string
		secret string
		seed   bool
	)
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory backend for development",
		Long: `Runs an in-memory implementation of the backend API. State is lost on exit.

With --secret set, every /api route except /api/health requires a bearer
token signed with that secret; a token valid for 24 hours is printed at
startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := o.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging, logging.Options{Stderr: true})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()
			logger = logging.For(logger, logging.CategoryMockAPI)

			if secret == "" {
				secret = os.Getenv("ANALYZER_MOCK_SECRET")
			}

			store := mockapi.NewStore()
			if seed {
				store.AddTemplate("standard_template.docx", 48*1024)
				store.AddContract("vendor_agreement.docx", 52*1024)
				store.AddContract("nda_acme.docx", 21*1024)
			}

			router := mockapi.NewRouter(store, mockapi.Options{
				Logger:         logger,
				JWTSecret:      secret,
				AllowedTypes:   cfg.Upload.AllowedTypes,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				Version:        app.Version,
			})

			w := cmd.OutOrStdout()
			successColor.Fprintf(w, "Mock backend on %s\n", addr)
			if secret != "" {
				token, expires, err := mockapi.GenerateToken("console", secret, 24*time.Hour)
				if err != nil {
					return err
				}
				printField(w, "Token", token)
				printField(w, "Expires", expires.Format(time.RFC3339))
				logger.Info("auth enabled")
			}
			err = mockapi.Serve(cmd.Context(), addr, router, logger)
			if err != nil {
				logger.Error("mock backend failed", zap.Error(err))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "Require bearer tokens signed with this secret (or ANALYZER_MOCK_SECRET)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Start with sample contracts and a template")
	return cmd
}
