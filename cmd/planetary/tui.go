package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/messagelist"
	"github.com/planetary-social/planetary-cli/internal/tui"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	var discover bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse the home feed interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts, discover)
		},
	}
	cmd.Flags().BoolVar(&discover, "discover", false, "browse the discover feed instead of home")
	return cmd
}

func runTUI(cmd *cobra.Command, opts *rootOptions, discover bool) error {
	e, err := opts.setup(cmd, "-")
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	var list *messagelist.Controller
	title := "Planetary · home"
	if discover {
		list = e.svc.DiscoverList(ctx)
		title = "Planetary · discover"
	} else {
		list = e.svc.HomeList(ctx)
	}
	defer list.Close()

	model := tui.NewModel(list,
		tui.WithTitle(title),
		tui.WithStrategySaver(func(ctx context.Context, s feed.Strategy) error {
			return e.svc.SetStrategy(ctx, discover, s)
		}),
	)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
