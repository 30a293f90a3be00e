package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xiaot623/helia/internal/adapter/ollama"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the backend advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			generator := ollama.NewGenerator(a.cfg, a.logger)
			return printModels(cmd.Context(), generator, a.cfg.Model, cmd.OutOrStdout())
		},
	}
}

// printModels lists models one per line, marking the configured one.
func printModels(ctx context.Context, generator ollama.Generator, current string, w io.Writer) error {
	models := generator.ListModels(ctx)
	if len(models) == 0 {
		_, err := fmt.Fprintln(w, "no models available")
		return err
	}
	for _, m := range models {
		marker := " "
		if m == current {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", marker, m); err != nil {
			return err
		}
	}
	return nil
}
