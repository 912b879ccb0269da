// Package commands implements the operator CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zillah777/fixia-platform-sub000/internal/config"
	"github.com/zillah777/fixia-platform-sub000/internal/server"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// openApp builds the services against the configured store. Tests swap it.
var openApp = func(ctx context.Context) (*server.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	st, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return server.NewApp(server.Deps{
		Store:     st,
		Tuning:    cfg.Tuning,
		JWTSecret: cfg.JWTSecret,
		AppURL:    cfg.AppURL,
	}), nil
}

var appCtx *server.App

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adminutil",
		Short:         "Fixia operator tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			appCtx = app
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				appCtx.Wait()
				appCtx.Store.Close()
			}
		},
	}

	root.AddCommand(migrateCmd(), sweepCmd(), blockingStatusCmd(), verifyProviderCmd(), promoteAdminCmd())
	return root
}

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func storeOf() store.Store { return appCtx.Store }
