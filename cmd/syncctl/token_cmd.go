package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kasukras-star/apotikme-api/internal/bootstrap"
	"github.com/kasukras-star/apotikme-api/internal/models"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := models.UserRole(strings.ToUpper(role))
			switch userRole {
			case models.RoleOwner, models.RoleApprover, models.RoleOperator:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			return withEngine(cmd.Context(), func(_ context.Context, engine *bootstrap.Engine) error {
				token, err := engine.Tokens.IssueToken(userID, userRole, ttl)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleOperator), "OWNER, APPROVER or OPERATOR")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
