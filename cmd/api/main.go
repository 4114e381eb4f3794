package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sociodent-api",
		Short: "SocioDent appointment and doctor matching API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
			return runServer(cmd.Context(), cfg)
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for an admin or doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if role != middleware.RoleAdmin && role != middleware.RoleDoctor {
				return fmt.Errorf("role must be %q or %q", middleware.RoleAdmin, middleware.RoleDoctor)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			token, err := middleware.NewAuthenticator(cfg.Auth, false).IssueToken(args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("role", middleware.RoleAdmin, "token role (admin or doctor)")
	cmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL files in the migrations directory in name order",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
			logger := observability.GetLogger()

			files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
			if err != nil {
				return err
			}
			sort.Strings(files)

			pgClient, err := postgres.NewClient(&cfg.Database)
			if err != nil {
				return err
			}
			defer pgClient.Close()

			ctx := context.Background()
			for _, file := range files {
				script, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if _, err := pgClient.DB().ExecContext(ctx, string(script)); err != nil {
					return fmt.Errorf("migration %s failed: %w", filepath.Base(file), err)
				}
				logger.Info().Str("file", filepath.Base(file)).Msg("applied migration")
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "./migrations", "path to migrations directory")
	return cmd
}
