package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/edge-runtime/engine"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List a guest module's imports and exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wasm, err := os.ReadFile(a.cfg.Guest.Path)
			if err != nil {
				return fmt.Errorf("read guest: %w", err)
			}
			eng, err := engine.New(ctx, nil)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			mod, err := eng.Compile(ctx, wasm)
			if err != nil {
				return err
			}
			missing := mod.MissingExports()
			renderInspect(cmd.OutOrStdout(), a.cfg.Guest.Path, mod.Imports(), mod.Exports(), missing)
			if len(missing) > 0 {
				return fmt.Errorf("guest lacks required exports: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func renderInspect(w io.Writer, path string, imports, exports []engine.Symbol, missing []string) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Guest"))
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Imports"))
	b.WriteString("\n")
	for _, s := range imports {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(s.Module))
		b.WriteString(formatSymbol(s))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Exports"))
	b.WriteString("\n")
	for _, s := range exports {
		b.WriteString("  ")
		b.WriteString(formatSymbol(s))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(missing) == 0 {
		b.WriteString(resultStyle.Render("required surface present"))
	} else {
		b.WriteString(errorStyle.Render("missing: " + strings.Join(missing, ", ")))
	}
	b.WriteString("\n")
	_, _ = io.WriteString(w, b.String())
}

func formatSymbol(s engine.Symbol) string {
	if s.Kind != "func" {
		return funcStyle.Render(s.Name) + " " + typeStyle.Render(s.Kind)
	}
	sig := "(" + strings.Join(s.Params, ", ") + ")"
	if len(s.Results) > 0 {
		sig += " -> " + strings.Join(s.Results, ", ")
	}
	return funcStyle.Render(s.Name) + typeStyle.Render(sig)
}
