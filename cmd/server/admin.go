package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/supportchat-server/internal/app"
	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer st.Close()

		logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema up to date")
		return nil
	},
}

var tokenArgs struct {
	user string
	role string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		role := store.Role(tokenArgs.role)
		if !role.Valid() {
			return fmt.Errorf("%w: %q", auth.ErrInvalidRole, tokenArgs.role)
		}

		jwtConfig := app.JWTConfig(&cfg)
		if jwtConfig == nil {
			return errors.New("jwt_secret is not configured")
		}

		token, err := auth.GenerateToken(jwtConfig, tokenArgs.user, string(role))
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var profileArgs struct {
	user string
	role string
	name string
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored user roles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a user's stored role",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		role := store.Role(profileArgs.role)
		if !role.Valid() {
			return fmt.Errorf("%w: %q", auth.ErrInvalidRole, profileArgs.role)
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		err = st.UpsertProfile(context.Background(), &store.Profile{
			UserID:      profileArgs.user,
			Role:        role,
			DisplayName: profileArgs.name,
		})
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		logger.Info().Str("user_id", profileArgs.user).Str("role", string(role)).Msg("profile saved")
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenArgs.user, "user", "", "user id (token subject)")
	tokenCmd.Flags().StringVar(&tokenArgs.role, "role", string(store.RoleCustomer), "role claim")
	_ = tokenCmd.MarkFlagRequired("user")

	profileSetCmd.Flags().StringVar(&profileArgs.user, "user", "", "user id")
	profileSetCmd.Flags().StringVar(&profileArgs.role, "role", "", "role (customer, support_agent, manager, admin)")
	profileSetCmd.Flags().StringVar(&profileArgs.name, "name", "", "display name")
	_ = profileSetCmd.MarkFlagRequired("user")
	_ = profileSetCmd.MarkFlagRequired("role")

	profileCmd.AddCommand(profileSetCmd)
}
