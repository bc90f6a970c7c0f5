package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"potluck/config"
	"potluck/models"
	"potluck/services"
	"potluck/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clientLogger writes to the configured file; without one, client commands
// stay quiet so they don't mix logs into the terminal.
func clientLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.File == "" {
		return zap.NewNop(), nil
	}
	return config.NewLogger(cfg.Log)
}

func newClientRoster(cfg *config.Config, opts ...services.RosterOption) (*services.Roster, error) {
	log, err := clientLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := services.NewHTTPDishStore(cfg.API.URL, log)
	if err != nil {
		return nil, err
	}
	opts = append([]services.RosterOption{services.WithLogger(log)}, opts...)
	return services.NewRoster(store, opts...), nil
}

// reportedError is a failure the user has already been shown.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// alertPrinter prints roster alerts and remembers that it did.
type alertPrinter struct {
	w     io.Writer
	fired atomic.Bool
}

func (p *alertPrinter) Notify(msg string) {
	p.fired.Store(true)
	ui.Fail(p.w, msg)
}

// result marks err as reported when an alert for it was printed.
func (p *alertPrinter) result(err error) error {
	if err != nil && p.fired.Load() {
		return &reportedError{err: err}
	}
	return err
}

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Live board: sign up a dish and watch the list update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runBoard(cmd.Context(), cfg)
		},
	}
}

func runBoard(ctx context.Context, cfg *config.Config) error {
	m := ui.New(ctx)
	roster, err := newClientRoster(cfg, services.WithNotifier(m.Notifier()))
	if err != nil {
		return err
	}
	if err := roster.Start(ctx); err != nil {
		_ = roster.Dispose()
		return err
	}
	return ui.Run(m.WithRoster(roster))
}

func newListCmd() *cobra.Command {
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print savory and sweet dishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			roster, err := newClientRoster(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = roster.Dispose() }()

			entries, err := roster.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			ui.PrintRoster(cmd.OutOrStdout(), entries, showIDs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "show dish ids (needed for rm)")
	return cmd
}

func newAddCmd() *cobra.Command {
	var sweet bool
	var typ string
	cmd := &cobra.Command{
		Use:   "add <your name> <dish>",
		Short: "Sign up a dish",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := models.DefaultCategory
			if sweet {
				category = models.CategorySweet
			}
			if typ != "" {
				c, ok := models.ParseCategory(typ)
				if !ok {
					return fmt.Errorf("unknown type %q (savory or sweet)", typ)
				}
				category = c
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			alerts := &alertPrinter{w: cmd.ErrOrStderr()}
			roster, err := newClientRoster(cfg, services.WithNotifier(alerts))
			if err != nil {
				return err
			}
			defer func() { _ = roster.Dispose() }()

			if err := roster.AddEntry(cmd.Context(), args[0], args[1], category); err != nil {
				return alerts.result(err)
			}
			ui.OK(cmd.OutOrStdout(), fmt.Sprintf("added (%d dishes signed up)", services.TotalCount(roster.Entries())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&sweet, "sweet", false, "the dish is sweet (default savory)")
	cmd.Flags().StringVar(&typ, "type", "", "salgado|doce|savory|sweet")
	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a dish by id (see list --ids)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			alerts := &alertPrinter{w: cmd.ErrOrStderr()}
			roster, err := newClientRoster(cfg, services.WithNotifier(alerts))
			if err != nil {
				return err
			}
			defer func() { _ = roster.Dispose() }()

			if err := roster.DeleteEntry(cmd.Context(), args[0]); err != nil {
				return alerts.result(err)
			}
			ui.OK(cmd.OutOrStdout(), "removed")
			return nil
		},
	}
}
