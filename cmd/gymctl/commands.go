package main

import (
	"encoding/json"
	"fmt"
	"gym-billing-reconciler/internal/client"
	"gym-billing-reconciler/internal/config"
	"gym-billing-reconciler/internal/logger"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/repository"
	"gym-billing-reconciler/internal/service"
	"io"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type app struct {
	db    *gorm.DB
	log   *zap.Logger
	admin service.AdminService
}

func loadApp() (*app, error) {
	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDBClient(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	admin := service.NewAdminService(
		repository.NewWebhookEventRepository(db),
		repository.NewMembershipRepository(db),
		repository.NewUserRepository(db),
		log,
	)

	return &app{db: db, log: log, admin: admin}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gymctl",
		Short:         "Operate the gym billing reconciler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	memberships := &cobra.Command{Use: "memberships", Short: "Membership maintenance"}
	memberships.AddCommand(fixDuplicatesCommand())

	events := &cobra.Command{Use: "events", Short: "Webhook event ledger"}
	events.AddCommand(failedEventsCommand())

	users := &cobra.Command{Use: "users", Short: "User provisioning"}
	users.AddCommand(upsertUserCommand())

	root.AddCommand(migrateCommand(), memberships, events, users)
	return root
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := client.Migrate(a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

func fixDuplicatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-duplicates",
		Short: "Flag all but the latest active membership per user as duplicate",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			flagged, err := a.admin.FixDuplicateMemberships(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range flagged {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tuser=%s\tsubscription=%s\n", m.ID, m.UserID, m.StripeSubscriptionID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d membership(s) flagged\n", len(flagged))
			return nil
		},
	}
}

func failedEventsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List webhook events whose last attempt failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			events, err := a.admin.ListFailedEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events to list")

	return cmd
}

func upsertUserCommand() *cobra.Command {
	var user model.User

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a user from an identity payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			stored, err := a.admin.UpsertUser(cmd.Context(), &user)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stored)
		},
	}
	cmd.Flags().StringVar(&user.ClerkID, "clerk-id", "", "external identity id")
	cmd.Flags().StringVar(&user.Email, "email", "", "email address")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Role, "role", "member", "role")
	_ = cmd.MarkFlagRequired("clerk-id")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
