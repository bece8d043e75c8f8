package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/shell"
)

func newPromptsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Read, edit and validate analysis prompts",
		Long: fmt.Sprintf(`Manage the prompt templates the backend analyzes with.

Prompt types: %s`, promptTypeList()),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <type>",
			Short: "Print a prompt",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				pt, err := parsePromptType(args[0])
				if err != nil {
					return err
				}
				return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
					if err := a.Prompts.Select(ctx, pt); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), a.Prompts.GetCurrentPromptContent())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <type> [file]",
			Short: "Replace a prompt with the contents of file, or stdin",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pt, err := parsePromptType(args[0])
				if err != nil {
					return err
				}
				content, err := readContent(cmd, args[1:])
				if err != nil {
					return err
				}
				return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
					if err := a.Prompts.Select(ctx, pt); err != nil {
						return err
					}
					a.Prompts.SetPromptContent(content)
					return a.Prompts.Save(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "validate <type> [file]",
			Short: "Validate a prompt, or the contents of file",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pt, err := parsePromptType(args[0])
				if err != nil {
					return err
				}
				var content string
				if len(args) > 1 {
					if content, err = readContent(cmd, args[1:]); err != nil {
						return err
					}
				}
				return withSession(cmd, o, func(ctx context.Context, a *app.App) error {
					if err := a.Prompts.Select(ctx, pt); err != nil {
						return err
					}
					if content != "" {
						a.Prompts.SetPromptContent(content)
					}
					v, err := a.Prompts.Validate(ctx)
					if err != nil {
						return err
					}
					w := cmd.OutOrStdout()
					for _, e := range v.Errors {
						errorColor.Fprint(w, "  error   ")
						fmt.Fprintln(w, e)
					}
					for _, warn := range v.Warnings {
						warningColor.Fprint(w, "  warning ")
						fmt.Fprintln(w, warn)
					}
					if len(v.Variables) > 0 {
						printField(w, "Variables", strings.Join(v.Variables, ", "))
					}
					if !v.Valid {
						return shell.Handled(errors.New("prompt is invalid"))
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func parsePromptType(s string) (model.PromptType, error) {
	pt := model.PromptType(s)
	if !pt.Valid() {
		return "", fmt.Errorf("unknown prompt type %q (want one of %s)", s, promptTypeList())
	}
	return pt, nil
}

func promptTypeList() string {
	var names []string
	for _, t := range model.PromptTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// readContent reads args[0], or stdin when args is empty or "-".
func readContent(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
