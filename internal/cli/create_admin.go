package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/config"
)

// AdminPasswordEnv supplies the password without putting it on the command line.
const AdminPasswordEnv = "BIBLIOTECA_ADMIN_PASSWORD"

// CreateAdminCommand bootstraps the first SUPERADMIN account.
type CreateAdminCommand struct {
	storeFlags
	Username string
	Email    string
	FullName string
	Password string

	config *config.Config
}

func NewCreateAdminCommand(cfg *config.Config) *CreateAdminCommand {
	return &CreateAdminCommand{config: cfg}
}

func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	cmd.register(fs, cmd.config)
	fs.StringVar(&cmd.Username, "username", "", "Login name (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.FullName, "full-name", "", "Display name")
	fs.StringVar(&cmd.Password, "password", "", "Password (prefer the "+AdminPasswordEnv+" environment variable)")

	fs.Usage = func() {
		usageHeader("create-admin", "-username <name> -email <email> [options]",
			"Create the initial superadmin. Fails once any staff account exists.")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Password == "" {
		cmd.Password = os.Getenv(AdminPasswordEnv)
	}

	if cmd.Username == "" {
		return fmt.Errorf("required flag -username not provided")
	}
	if cmd.Email == "" {
		return fmt.Errorf("required flag -email not provided")
	}
	if cmd.Password == "" {
		return fmt.Errorf("password not provided: set -password or %s", AdminPasswordEnv)
	}
	return nil
}

func (cmd *CreateAdminCommand) Run() error {
	app, err := cmd.open(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.Auth.Bootstrap(context.Background(), auth.NewUser{
		Username: cmd.Username,
		Email:    cmd.Email,
		FullName: cmd.FullName,
		Password: cmd.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to create superadmin: %w", err)
	}

	fmt.Printf("Created superadmin %q (id %d)\n", user.Username, user.ID)
	return nil
}
