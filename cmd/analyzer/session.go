package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/notify"
)

// withSession runs fn against a started headless session and prints the
// notifications it produced.
func withSession(cmd *cobra.Command, o *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	a, err := app.New(ctx, app.Options{
		Config:      cfg,
		AlertWriter: cmd.ErrOrStderr(),
		Headless:    true,
		StderrLogs:  true,
	})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Start(ctx); err != nil {
		return err
	}
	// startup chatter is not part of the command's output
	a.Notify.Clear()

	var (
		mu    sync.Mutex
		shown []notify.Notification
	)
	a.Notify.Record(func(n notify.Notification) {
		mu.Lock()
		shown = append(shown, n)
		mu.Unlock()
	})

	err = fn(ctx, a)
	a.Notify.Record(nil)

	mu.Lock()
	defer mu.Unlock()
	printNotifications(cmd.OutOrStdout(), shown)
	return err
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	labelColor   = color.New(color.Faint)
)

func printNotifications(w io.Writer, items []notify.Notification) {
	for _, n := range items {
		if n.Loading {
			continue
		}
		switch n.Kind {
		case notify.Success:
			successColor.Fprint(w, "✓ ")
		case notify.Error:
			errorColor.Fprint(w, "✗ ")
		case notify.Warning:
			warningColor.Fprint(w, "! ")
		default:
			infoColor.Fprint(w, "i ")
		}
		fmt.Fprintln(w, n.Message)
	}
}

func printField(w io.Writer, label string, value any) {
	labelColor.Fprintf(w, "%-16s", label)
	fmt.Fprintln(w, value)
}
