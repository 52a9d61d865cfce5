package main

import (
	"fmt"
	"time"

	"github.com/dkeye/Relay/internal/adapters/identity"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTokenCommand mints a bearer token with the configured secret, for local
// testing without an identity provider.
func NewTokenCommand(configPath *string) *cobra.Command {
	var (
		id     string
		name   string
		avatar string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Print a signed bearer token for a user",
		Example: "relay token --name alice --ttl 2h",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			if ttl <= 0 {
				ttl = cfg.JWT.TTL
			}
			u, err := domain.NewUser(domain.UserID(id), name, avatar)
			if err != nil {
				return err
			}
			tok, err := identity.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.Issuer).Issue(u, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "user id (random when empty)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar url")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default jwt.ttl from config)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
