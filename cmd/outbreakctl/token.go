package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"outbreakwatch/internal/auth"
)

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
		Long: "Signs an HS256 token for local testing and break-glass operator access. " +
			"The secret and issuer are read from AUTH_JWT_SECRET and AUTH_JWT_ISSUER.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "" && role != auth.RoleOperator {
				return fmt.Errorf("--role must be empty or %q", auth.RoleOperator)
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			if err := c.resolveSecrets(); err != nil {
				return err
			}
			secret, _ := c.lookupEnv("AUTH_JWT_SECRET")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			issuer, _ := c.lookupEnv("AUTH_JWT_ISSUER")

			token, err := auth.IssueToken(secret, subject, role, issuer, ttl, c.now())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, recorded as the caller id")
	cmd.Flags().StringVar(&role, "role", "", `"operator" grants alert resolution`)
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
