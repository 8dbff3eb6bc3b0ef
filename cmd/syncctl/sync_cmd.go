package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kasukras-star/apotikme-api/internal/bootstrap"
)

type syncOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newPullCmd() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull and reconcile change requests from the shared store",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, engine *bootstrap.Engine) error {
				start := time.Now()
				if kind == "" {
					err = engine.Loop.PullAll(ctx)
				} else {
					err = engine.Loop.Pull(ctx, kind)
				}
				if err != nil {
					return err
				}
				return reportStatus(ctx, cmd, engine, "pull", start)
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Subject kind (all kinds when empty)")
	return cmd
}

func newPushCmd() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the local collection of a kind to the shared store",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, engine *bootstrap.Engine) error {
				start := time.Now()
				if err := engine.Loop.Push(ctx, kind); err != nil {
					return err
				}
				return reportStatus(ctx, cmd, engine, "push", start)
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Subject kind (required)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state for every kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *bootstrap.Engine) error {
				return reportStatus(ctx, cmd, engine, "status", time.Now())
			})
		},
	}
}

func reportStatus(ctx context.Context, cmd *cobra.Command, engine *bootstrap.Engine, name string, start time.Time) error {
	status, err := engine.Loop.Status(ctx, engine.Config.ChangeRequests.RecencyWindow)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), syncOutput{
		Command:    name,
		DurationMS: time.Since(start).Milliseconds(),
		Result:     status,
	})
}
