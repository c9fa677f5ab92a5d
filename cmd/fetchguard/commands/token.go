package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/fetchguard/auth"
)

// NewTokenCmd creates the token command
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token signed with ADMIN_JWT_SECRET",
		RunE:  runToken,
	}
	cmd.Flags().String("subject", "", "Token subject (required)")
	cmd.Flags().String("role", auth.RoleAdmin, "Token role")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	cmd.Flags().String("issuer", "fetchguard", "Token issuer, must match ADMIN_JWT_ISSUER")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	issuer, _ := cmd.Flags().GetString("issuer")

	if subject == "" {
		return fmt.Errorf("--subject is required")
	}

	validator, err := auth.NewHMACValidator(auth.Config{
		Secret: os.Getenv("ADMIN_JWT_SECRET"),
		Issuer: issuer,
	})
	if err != nil {
		return fmt.Errorf("ADMIN_JWT_SECRET: %w", err)
	}

	token, err := validator.IssueToken(subject, role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
