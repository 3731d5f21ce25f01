package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/repository"
)

var operator = authz.Principal{UserID: "onactl", Superuser: true}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.migrator.Up(app.ctx)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.migrator.Down(app.ctx)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := app.migrator.Version(app.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	})
	return cmd
}

func provisionCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision-calendars",
		Short: "Create the missing calendar of every eligible volunteer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := app.volunteerService().BackfillCalendars(app.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d calendars\n", created)
			return nil
		},
	}
}

func createVolunteerCmd() *cobra.Command {
	var req models.CreateVolunteerRequest
	var userID, role string
	cmd := &cobra.Command{
		Use:   "create-volunteer",
		Short: "Provision a volunteer and its calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = models.UserRole(role)
			if userID != "" {
				req.UserID = &userID
			}
			volunteer, err := app.volunteerService().Provision(app.ctx, operator, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "volunteer %s created (%s, %s)\n", volunteer.ID, volunteer.FullName(), volunteer.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, EMPLOYEE, VOLUNTEER_INTERVIEW or VOLUNTEER_GOVERNANCE")
	cmd.Flags().StringVar(&userID, "user-id", "", "Identity provider user ID")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func issueTokenCmd() *cobra.Command {
	var superuser bool
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token <volunteer-id>",
		Short: "Mint an access token for a volunteer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteer, err := repository.NewVolunteerRepository(app.db).FindByID(app.ctx, args[0])
			if err != nil {
				return fmt.Errorf("load volunteer %s: %w", args[0], err)
			}
			if expiry > 0 {
				app.cfg.JWT.Expiration = expiry
			}
			token, err := app.authService().IssueToken(volunteer, superuser)
			if err != nil {
				return err
			}
			if token.AccessToken == "" {
				return errors.New("empty token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant unrestricted rights")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "Token lifetime, defaults to JWT_EXPIRATION")
	return cmd
}
