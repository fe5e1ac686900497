package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the user management commands
func UserCommands(userService *services.UserService, logger *observability.Logger, databaseURL string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the complaint desk.

Available commands:
  list           - List users, optionally filtered by role
  create         - Create a user account
  reset-password - Reset password for a specific user
  approve        - Approve a pending staff registration`,
	}

	userCmd.AddCommand(listCmd(userService, logger, databaseURL))
	userCmd.AddCommand(createCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))
	userCmd.AddCommand(approveCmd(userService, logger))

	return userCmd
}

func listCmd(userService *services.UserService, logger *observability.Logger, databaseURL string) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long:  `List users in the database with their basic information. Use --role to limit to one role.`,
		RunE:  runListUsers(userService, logger, databaseURL, &role),
	}
	cmd.Flags().StringVar(&role, "role", "", "Limit listing to a single role (student, teacher, mentor, hod)")

	return cmd
}

func createCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	var name, role string
	var assignedTeacher int

	cmd := &cobra.Command{
		Use:   "create [email]",
		Short: "Create a user account",
		Long:  `Create a user account with the given email. Staff accounts created here are approved immediately; the password is read from the terminal.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCreateUser(userService, logger, &name, &role, &assignedTeacher),
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the account (required)")
	cmd.Flags().StringVar(&role, "role", "", "Account role (student, teacher, mentor)")
	cmd.Flags().IntVar(&assignedTeacher, "assigned-teacher", 0, "Teacher user ID for student accounts")

	return cmd
}

func resetPasswordCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Reset password for a user",
		Long:  `Reset the password for a specific user. If email is not provided, you will be prompted for it.`,
		RunE:  runResetPassword(userService, logger),
	}
}

func approveCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "approve [email]",
		Short: "Approve a pending staff registration",
		Long:  `Approve a teacher or mentor registration that is waiting for department head review.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runApprove(userService, logger),
	}
}

// runListUsers returns a function that lists users
func runListUsers(userService *services.UserService, logger *observability.Logger, databaseURL string, roleFilter *string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{"config_file": os.Getenv("COMPLAINTDESK_CONFIG_FILE"), "database_url": maskDatabaseURL(databaseURL)})

		roles := []models.Role{models.RoleStudent, models.RoleTeacher, models.RoleMentor, models.RoleHod}
		if *roleFilter != "" {
			if !models.ValidRole(*roleFilter) {
				return contextutils.ErrorWithContextf("unknown role %q", *roleFilter)
			}
			roles = []models.Role{models.Role(*roleFilter)}
		}

		var users []models.User
		for _, role := range roles {
			batch, err := userService.ListByRole(ctx, role)
			if err != nil {
				logger.Error(ctx, "Failed to get users", err, map[string]interface{}{"role": string(role)})
				return contextutils.WrapError(err, "failed to get users")
			}
			users = append(users, batch...)
		}

		if len(users) == 0 {
			logger.Info(ctx, "No users found in the database", nil)
			return nil
		}

		fmt.Printf("%-5s %-25s %-30s %-8s %-10s %-8s %-10s\n", "ID", "Name", "Email", "Role", "Status", "Active", "Created")
		fmt.Println(strings.Repeat("-", 100))

		for _, user := range users {
			active := "No"
			if user.IsActive {
				active = "Yes"
			}

			fmt.Printf("%-5d %-25s %-30s %-8s %-10s %-8s %-10s\n",
				user.ID,
				user.Name,
				user.Email,
				user.Role,
				user.RegistrationStatus,
				active,
				user.CreatedAt.Format("2006-01-02"),
			)
		}

		logger.Info(ctx, "Listed users", map[string]interface{}{"total": len(users)})
		return nil
	}
}

// runCreateUser returns a function that creates a user account
func runCreateUser(userService *services.UserService, logger *observability.Logger, name, role *string, assignedTeacher *int) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		email := args[0]

		if *name == "" {
			return contextutils.ErrorWithContextf("--name is required")
		}
		if !models.ValidRole(*role) {
			return contextutils.ErrorWithContextf("unknown role %q", *role)
		}
		if models.Role(*role) == models.RoleHod {
			return contextutils.ErrorWithContextf("the department head account is managed through server bootstrap, not user create")
		}

		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
		}
		password := string(passwordBytes)
		fmt.Println()

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.RegisterUser(ctx, &services.RegisterUserInput{
			Name:            *name,
			Email:           email,
			Password:        password,
			Role:            models.Role(*role),
			AssignedTeacher: *assignedTeacher,
		})
		if err != nil {
			logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"email": email, "role": *role})
			return contextutils.WrapError(err, "failed to create user")
		}

		if user.RegistrationStatus == models.RegistrationPending {
			cliActor := models.Actor{ID: 0, Name: "admin-cli", Role: models.RoleHod}
			approved, err := userService.DecideRegistration(ctx, cliActor, user.ID, true)
			if err != nil {
				logger.Error(ctx, "Failed to approve created user", err, map[string]interface{}{"email": email, "user_id": user.ID})
				return contextutils.WrapError(err, "failed to approve created user")
			}
			user = approved
		}

		fmt.Printf("User created: '%s' (ID: %d, role: %s, status: %s)\n", email, user.ID, user.Role, user.RegistrationStatus)
		return nil
	}
}

// runResetPassword returns a function that resets a user's password
func runResetPassword(userService *services.UserService, logger *observability.Logger) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		var email string
		if len(args) > 0 {
			email = args[0]
		} else {
			fmt.Print("Enter email: ")
			if _, err := fmt.Scanln(&email); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read email: %v", err)
			}
		}

		if email == "" {
			return contextutils.ErrorWithContextf("email is required")
		}

		fmt.Print("Enter new password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
		}
		newPassword := string(passwordBytes)
		fmt.Println()

		if newPassword == "" {
			return contextutils.ErrorWithContextf("password cannot be empty")
		}

		fmt.Print("Confirm new password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
		}
		fmt.Println()

		if newPassword != string(confirmBytes) {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		logger.Info(ctx, "Resetting password for user", map[string]interface{}{"email": email})

		user, err := userService.GetUserByEmail(ctx, email)
		if err != nil {
			logger.Error(ctx, "Failed to get user", err, map[string]interface{}{"email": email})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to get user '%s': %v", email, err)
		}

		if err := userService.UpdateUserPassword(ctx, user.ID, newPassword); err != nil {
			logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"email": email, "user_id": user.ID})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to update password for user '%s': %v", email, err)
		}

		fmt.Printf("Password successfully reset for user '%s' (ID: %d)\n", email, user.ID)
		return nil
	}
}

// runApprove returns a function that approves a pending registration
func runApprove(userService *services.UserService, logger *observability.Logger) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		email := args[0]

		user, err := userService.GetUserByEmail(ctx, email)
		if err != nil {
			logger.Error(ctx, "Failed to get user", err, map[string]interface{}{"email": email})
			return contextutils.WrapError(err, "failed to get user")
		}

		// The admin CLI acts with department head authority
		cliActor := models.Actor{ID: 0, Name: "admin-cli", Role: models.RoleHod}
		if _, err := userService.DecideRegistration(ctx, cliActor, user.ID, true); err != nil {
			logger.Error(ctx, "Failed to approve registration", err, map[string]interface{}{"email": email, "user_id": user.ID})
			return contextutils.WrapError(err, "failed to approve registration")
		}

		fmt.Printf("Registration approved for '%s' (ID: %d, role: %s)\n", email, user.ID, user.Role)
		return nil
	}
}
