package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/bootstrap"
	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/pkg/config"
	"github.com/kasukras-star/apotikme-api/pkg/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "syncctl",
		Short:        "Operate the change request sync between the local cache and the shared store",
		SilenceUsage: true,
	}
	cmd.AddCommand(newPullCmd(), newPushCmd(), newStatusCmd(), newTokenCmd())
	return cmd
}

// withEngine loads configuration, wires the engine without starting the loop and runs fn.
func withEngine(ctx context.Context, fn func(ctx context.Context, engine *bootstrap.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	engine, err := bootstrap.New(ctx, cfg, logr.With(zap.String("component", "syncctl")))
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	return fn(ctx, engine)
}

func parseKind(raw string) (models.SubjectKind, error) {
	if raw == "" {
		return "", nil
	}
	kind := models.SubjectKind(raw)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown kind %q", raw)
	}
	return kind, nil
}
